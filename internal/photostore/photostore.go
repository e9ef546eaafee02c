package photostore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
)

// ErrNotFound is returned by Get and Delete for unknown keys.
var ErrNotFound = errors.New("photo not found")

// PhotoStore is an object bucket holding measurement photos.
type PhotoStore interface {
	Save(ctx context.Context, name, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
	// URL returns the public address of a stored photo.
	URL(storageKey string) string
}

// KeyFromURL recovers the storage key from a public photo URL: the last path
// segment, which is the filename the photo was saved under.
func KeyFromURL(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	key := path.Base(p)
	if key == "" || key == "." || key == "/" {
		return "", false
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return key, true
}

func MimeTypeToExt(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func ExtToMimeType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
