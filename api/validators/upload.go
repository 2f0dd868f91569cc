package validators

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

// multipartOverhead leaves room for boundaries and form fields around the file.
const multipartOverhead = 1 << 20

// Upload is a single file read from a multipart form.
type Upload struct {
	FileName string
	Data     []byte
}

// ReadUpload reads one file field from a multipart body. Bodies larger than
// maxBytes are rejected before they reach storage.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*Upload, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "file too large").WithDetails(map[string]any{"maxBytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart form required")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required").WithDetails(map[string]any{"field": field})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file too large").WithDetails(map[string]any{"maxBytes": maxBytes})
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	return &Upload{FileName: SanitizeLine(filepath.Base(header.Filename), 255), Data: data}, nil
}
