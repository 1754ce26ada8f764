package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filegate/filegate/pkg/models"
	"github.com/filegate/filegate/pkg/upload"
)

// FilesHandler exposes the upload lifecycle over HTTP.
type FilesHandler struct {
	coordinator *upload.Coordinator
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(coordinator *upload.Coordinator) *FilesHandler {
	return &FilesHandler{coordinator: coordinator}
}

// InitRequest is the request body for POST /files/init.
type InitRequest struct {
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	ChecksumSHA256   string `json:"checksum_sha256"`
	SizeBytes        *int64 `json:"size_bytes,omitempty"`
}

// FileDetail is the API representation of a file object.
type FileDetail struct {
	ID                  string     `json:"id"`
	OriginalFilename    string     `json:"original_filename"`
	DeclaredContentType string     `json:"declared_content_type"`
	SniffedContentType  *string    `json:"sniffed_content_type,omitempty"`
	SizeBytes           *int64     `json:"size_bytes,omitempty"`
	State               string     `json:"state"`
	ChecksumSHA256      string     `json:"checksum_sha256"`
	ChecksumVerified    bool       `json:"checksum_verified"`
	UploadExpiresAt     *time.Time `json:"upload_expires_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Init handles POST /files/init.
func (h *FilesHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	resp, err := h.coordinator.Init(r.Context(), callerFromRequest(r), upload.InitRequest{
		OriginalFilename: req.OriginalFilename,
		ContentType:      req.ContentType,
		ChecksumSHA256:   req.ChecksumSHA256,
		SizeBytes:        req.SizeBytes,
	})
	if err != nil {
		writeUploadError(w, err)
		return
	}
	WriteJSONOK(w, resp)
}

// Complete handles POST /files/{id}/complete.
func (h *FilesHandler) Complete(w http.ResponseWriter, r *http.Request) {
	resp, err := h.coordinator.Complete(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeUploadError(w, err)
		return
	}
	WriteJSONOK(w, resp)
}

// List handles GET /files.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.coordinator.List(r.Context(), callerFromRequest(r))
	if err != nil {
		writeUploadError(w, err)
		return
	}

	details := make([]FileDetail, 0, len(files))
	for i := range files {
		details = append(details, fileToDetail(&files[i]))
	}
	WriteJSONOK(w, details)
}

// Get handles GET /files/{id}.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	file, err := h.coordinator.Get(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeUploadError(w, err)
		return
	}
	WriteJSONOK(w, fileToDetail(file))
}

// DownloadURL handles POST /files/{id}/download-url.
func (h *FilesHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	resp, err := h.coordinator.DownloadURL(r.Context(), callerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		writeUploadError(w, err)
		return
	}
	WriteJSONOK(w, resp)
}

// writeUploadError maps coordinator errors onto the API error taxonomy.
// Policy failures never reach this path: they return 200 with the new state.
func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upload.ErrInvalidInput):
		BadRequest(w, err.Error())
	case errors.Is(err, upload.ErrBadState):
		BadRequest(w, "File is not awaiting completion")
	case errors.Is(err, upload.ErrExpired):
		BadRequest(w, "Upload window has expired")
	case errors.Is(err, upload.ErrObjectNotUploaded):
		BadRequest(w, "Object has not been uploaded")
	case errors.Is(err, upload.ErrForbidden):
		Forbidden(w, "You do not have access to this file")
	case errors.Is(err, upload.ErrNotAvailable):
		Forbidden(w, "File is not available for download")
	case errors.Is(err, models.ErrQuotaExceeded):
		Forbidden(w, "Quota exceeded")
	case errors.Is(err, models.ErrFileNotFound):
		NotFound(w, "File not found")
	default:
		InternalServerError(w, "Internal server error")
	}
}

func fileToDetail(f *models.FileObject) FileDetail {
	return FileDetail{
		ID:                  f.ID,
		OriginalFilename:    f.OriginalFilename,
		DeclaredContentType: f.DeclaredContentType,
		SniffedContentType:  f.SniffedContentType,
		SizeBytes:           f.SizeBytes,
		State:               string(f.State),
		ChecksumSHA256:      f.ChecksumSHA256,
		ChecksumVerified:    f.ChecksumVerified,
		UploadExpiresAt:     f.UploadExpiresAt,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}
