// Package storage defines the opaque file store used for dispatch proofs and
// vendor invoices.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

// Object is a file ready to be written.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
	Metadata    map[string]string
}

// Uploader writes objects and returns a URL that resolves to them.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
}

// File is an upload as received from a client.
type File struct {
	Name string
	Data []byte
}

// Content types accepted for proofs and invoices.
var DocumentTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/webp",
}

// Inspect sniffs the content type of f from its bytes and checks it against
// allowed and maxBytes. The declared file name plays no part in the decision.
func Inspect(f File, maxBytes int64, allowed ...string) (string, error) {
	if len(f.Data) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if maxBytes > 0 && int64(len(f.Data)) > maxBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", maxBytes)).
			WithDetails(map[string]any{"maxBytes": maxBytes, "sizeBytes": len(f.Data)})
	}
	detected := mimetype.Detect(f.Data)
	for _, candidate := range allowed {
		if detected.Is(candidate) {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeUnsupportedContent, "file type is not allowed").
		WithDetails(map[string]any{"detected": detected.String(), "allowed": allowed})
}

// ObjectPath builds a collision-free object key under
// <kind>/<owner>/<yyyy>/<mm>/<uuid>-<name>.
func ObjectPath(kind string, owner uuid.UUID, fileName string, now time.Time) string {
	return path.Join(
		kind,
		owner.String(),
		now.UTC().Format("2006"),
		now.UTC().Format("01"),
		uuid.NewString()+"-"+SanitizeName(fileName),
	)
}

// SanitizeName reduces a client-supplied file name to a safe object suffix.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 120 {
		out = out[len(out)-120:]
	}
	return out
}
