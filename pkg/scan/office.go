package scan

import (
	"archive/zip"
	"bytes"
	"context"
	"io"

	"github.com/filegate/filegate/pkg/models"
	"github.com/filegate/filegate/pkg/policy"
)

// officeArchiveValid streams the object into memory (bounded by the global
// size cap, which the policy check has already enforced) and verifies the
// Office OpenXML container structure. A read failure is an infrastructure
// error; a parse failure or missing entry is a structural verdict.
func (w *Worker) officeArchiveValid(ctx context.Context, file *models.FileObject) (bool, error) {
	rc, err := w.blob.Open(ctx, file.Bucket, file.ObjectKey)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, policy.DefaultMaxSizeBytes))
	if err != nil {
		return false, err
	}
	return officeZipValid(data, file.OriginalFilename), nil
}

// officeZipValid parses the bytes as a ZIP archive and requires the
// [Content_Types].xml manifest plus the type-specific document entry.
func officeZipValid(data []byte, filename string) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}

	required := policy.OfficeRequiredEntry(filename)
	if required == "" {
		return false
	}

	var hasManifest, hasDocument bool
	for _, entry := range zr.File {
		switch entry.Name {
		case "[Content_Types].xml":
			hasManifest = true
		case required:
			hasDocument = true
		}
	}
	return hasManifest && hasDocument
}
