// Package policy enforces the static file-type allowlist: which extensions
// may be uploaded, which MIME types a client may declare for them, which
// MIME types the sniffer may plausibly report, and which magic prefixes the
// leading bytes must carry.
package policy

import (
	"bytes"
	"path/filepath"
	"strings"
)

// DefaultMaxSizeBytes caps uploads unless the caller overrides it.
const DefaultMaxSizeBytes = int64(50 * 1024 * 1024)

// DemoMaxSizeBytes caps uploads made through anonymous demo sessions.
const DemoMaxSizeBytes = int64(10 * 1024 * 1024)

// Validation failure reason codes. Exactly one is reported per failure.
const (
	ReasonDisallowedExtension  = "disallowed_extension"
	ReasonTooLarge             = "too_large"
	ReasonTypeSizeLimit        = "type_size_limit"
	ReasonDeclaredMimeMismatch = "declared_mime_mismatch"
	ReasonSniffMissing         = "sniff_missing"
	ReasonSniffMismatch        = "sniff_mismatch"
	ReasonMagicMissing         = "magic_missing"
	ReasonMagicMismatch        = "magic_mismatch"
	ReasonOfficeZipInvalid     = "office_zip_invalid"
)

// FileTypePolicy describes the constraints for one file extension.
type FileTypePolicy struct {
	// ExpectedMIMEs are the MIME types the client may declare at init.
	ExpectedMIMEs []string

	// SniffMIMEs are the MIME types the detector may plausibly report.
	// Broader than ExpectedMIMEs: docx legitimately sniffs as a ZIP.
	SniffMIMEs []string

	// MagicPrefixes, when non-empty, require at least one prefix to match
	// the leading bytes of the sample.
	MagicPrefixes [][]byte

	// MaxSizeBytes is an optional per-type cap tighter than the global one.
	MaxSizeBytes int64
}

// Result is the outcome of a validation run. Reason is empty iff OK.
type Result struct {
	OK      bool
	Reason  string
	Details map[string]any
}

var officeSniffMIMEs = []string{
	"application/zip",
	"application/octet-stream",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

var zipMagic = [][]byte{[]byte("PK\x03\x04")}

var fileTypePolicies = map[string]FileTypePolicy{
	".pdf": {
		ExpectedMIMEs: []string{"application/pdf"},
		SniffMIMEs:    []string{"application/pdf"},
		MagicPrefixes: [][]byte{[]byte("%PDF-")},
	},
	".txt": {
		ExpectedMIMEs: []string{"text/plain"},
		SniffMIMEs:    []string{"text/plain"},
	},
	".csv": {
		ExpectedMIMEs: []string{"text/csv", "application/csv"},
		SniffMIMEs:    []string{"text/plain", "text/csv"},
	},
	".png": {
		ExpectedMIMEs: []string{"image/png"},
		SniffMIMEs:    []string{"image/png"},
		MagicPrefixes: [][]byte{[]byte("\x89PNG\r\n\x1a\n")},
	},
	".jpg": {
		ExpectedMIMEs: []string{"image/jpeg"},
		SniffMIMEs:    []string{"image/jpeg"},
		MagicPrefixes: [][]byte{[]byte("\xff\xd8\xff")},
	},
	".jpeg": {
		ExpectedMIMEs: []string{"image/jpeg"},
		SniffMIMEs:    []string{"image/jpeg"},
		MagicPrefixes: [][]byte{[]byte("\xff\xd8\xff")},
	},
	".gif": {
		ExpectedMIMEs: []string{"image/gif"},
		SniffMIMEs:    []string{"image/gif"},
		MagicPrefixes: [][]byte{[]byte("GIF87a"), []byte("GIF89a")},
	},
	// Office OpenXML files are ZIP containers; accept zip-like sniff values,
	// but require extension + declared MIME + ZIP magic. Browsers frequently
	// declare octet-stream for these, so it is accepted as declared MIME.
	".docx": {
		ExpectedMIMEs: []string{
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/octet-stream",
		},
		SniffMIMEs:    officeSniffMIMEs,
		MagicPrefixes: zipMagic,
	},
	".xlsx": {
		ExpectedMIMEs: []string{
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/octet-stream",
		},
		SniffMIMEs:    officeSniffMIMEs,
		MagicPrefixes: zipMagic,
	},
	".pptx": {
		ExpectedMIMEs: []string{
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"application/octet-stream",
		},
		SniffMIMEs:    officeSniffMIMEs,
		MagicPrefixes: zipMagic,
	},
}

// Input bundles everything the validator inspects about one upload.
type Input struct {
	OriginalFilename    string
	DeclaredContentType string
	SniffedContentType  string
	SizeBytes           int64
	SizeKnown           bool
	SampleBytes         []byte

	// MaxSizeBytes overrides the global cap; zero means DefaultMaxSizeBytes,
	// negative disables the global cap.
	MaxSizeBytes int64
}

// IsOfficeExtension reports whether the filename's extension is one of the
// Office OpenXML container types subject to the structural ZIP check.
func IsOfficeExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx", ".xlsx", ".pptx":
		return true
	}
	return false
}

// OfficeRequiredEntry returns the type-specific ZIP entry that must exist in
// a valid Office container for the filename's extension.
func OfficeRequiredEntry(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return "word/document.xml"
	case ".xlsx":
		return "xl/workbook.xml"
	case ".pptx":
		return "ppt/presentation.xml"
	}
	return ""
}

// Validate checks an upload against the file-type allowlist. Checks run in a
// fixed order and the first failure wins: extension, global size, per-type
// size, declared MIME, sniffed MIME, magic prefix.
func Validate(in Input) Result {
	ext := strings.ToLower(filepath.Ext(in.OriginalFilename))
	p, ok := fileTypePolicies[ext]
	if !ok {
		return fail(ReasonDisallowedExtension, map[string]any{"filename": in.OriginalFilename})
	}

	maxSize := in.MaxSizeBytes
	if maxSize == 0 {
		maxSize = DefaultMaxSizeBytes
	}
	if maxSize > 0 && in.SizeKnown && in.SizeBytes > maxSize {
		return fail(ReasonTooLarge, map[string]any{"size": in.SizeBytes, "max": maxSize})
	}
	if p.MaxSizeBytes > 0 && in.SizeKnown && in.SizeBytes > p.MaxSizeBytes {
		return fail(ReasonTypeSizeLimit, map[string]any{"size": in.SizeBytes, "max": p.MaxSizeBytes, "ext": ext})
	}

	declared := baseMIME(in.DeclaredContentType)
	if !contains(p.ExpectedMIMEs, declared) {
		return fail(ReasonDeclaredMimeMismatch, map[string]any{"declared": orNone(declared), "ext": ext})
	}

	sniffed := baseMIME(in.SniffedContentType)
	if sniffed == "" {
		return fail(ReasonSniffMissing, map[string]any{"ext": ext})
	}
	if !contains(p.SniffMIMEs, sniffed) {
		return fail(ReasonSniffMismatch, map[string]any{"sniffed": sniffed, "declared": orNone(declared), "ext": ext})
	}

	if len(p.MagicPrefixes) > 0 {
		if len(in.SampleBytes) == 0 {
			return fail(ReasonMagicMissing, map[string]any{"ext": ext})
		}
		if !anyPrefix(in.SampleBytes, p.MagicPrefixes) {
			return fail(ReasonMagicMismatch, map[string]any{"ext": ext, "sniffed": sniffed})
		}
	}

	return Result{OK: true}
}

// AllowedExtension reports whether the filename's extension appears in the
// allowlist at all.
func AllowedExtension(filename string) bool {
	_, ok := fileTypePolicies[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func fail(reason string, details map[string]any) Result {
	return Result{Reason: reason, Details: details}
}

func baseMIME(value string) string {
	if value == "" {
		return ""
	}
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func anyPrefix(sample []byte, prefixes [][]byte) bool {
	for _, prefix := range prefixes {
		if bytes.HasPrefix(sample, prefix) {
			return true
		}
	}
	return false
}
