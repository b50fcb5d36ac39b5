// Package objectstore is the object storage collaborator: it stores
// uploaded file bytes and hands back a retrievable descriptor.
package objectstore

import (
	"context"
	"io"
	"path"
	"strings"
)

// Object describes a stored file.
type Object struct {
	Id          string
	Url         string
	Name        string
	ContentType string
	Size        int64
}

type Store interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (Object, error)
	Open(ctx context.Context, id string) (io.ReadCloser, Object, error)
}

// CanonicalName strips any client supplied directory components.
func CanonicalName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
