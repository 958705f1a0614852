package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when a stored file does not exist.
var ErrNotFound = errors.New("storage: file not found")

// FileStore keeps uploaded documents and returns a stable reference to them.
type FileStore interface {
	Save(ctx context.Context, dir, name string, body io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// ObjectName builds a collision-resistant object name from the uploaded
// file name, e.g. 1700000000000-deed.pdf.
func ObjectName(dir, original string, now time.Time) string {
	base := filepath.Base(original)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if base == "" || base == "." || base == "_" {
		base = "upload"
	}
	return path.Join(dir, fmt.Sprintf("%d-%s", now.UnixMilli(), base))
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Content  io.Reader
}
