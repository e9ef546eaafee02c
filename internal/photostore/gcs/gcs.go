package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/vbonduro/icewatch/internal/photostore"
	"google.golang.org/api/option"
)

const defaultPublicBaseURL = "https://storage.googleapis.com"

// GCSPhotoStore keeps photos as objects in a Google Cloud Storage bucket.
type GCSPhotoStore struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// NewGCSPhotoStore uses application default credentials unless opts say
// otherwise. An empty publicBaseURL addresses objects through
// storage.googleapis.com.
func NewGCSPhotoStore(ctx context.Context, bucket, publicBaseURL string, opts ...option.ClientOption) (*GCSPhotoStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return newWithClient(client, bucket, publicBaseURL), nil
}

func newWithClient(client *storage.Client, bucket, publicBaseURL string) *GCSPhotoStore {
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		base = defaultPublicBaseURL + "/" + bucket
	}
	return &GCSPhotoStore{client: client, bucket: bucket, publicBaseURL: base}
}

func (s *GCSPhotoStore) Save(ctx context.Context, name, mimeType string, r io.Reader) (string, error) {
	obj := s.client.Bucket(s.bucket).Object(name).If(storage.Conditions{DoesNotExist: true})
	wc := obj.NewWriter(ctx)
	wc.ContentType = mimeType
	// Normalized photos are small enough for a single-request upload.
	wc.ChunkSize = 0
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}
	return name, nil
}

func (s *GCSPhotoStore) Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error) {
	rc, err := s.client.Bucket(s.bucket).Object(storageKey).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", photostore.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open object: %w", err)
	}
	mimeType := rc.Attrs.ContentType
	if mimeType == "" {
		mimeType = photostore.ExtToMimeType(storageKey)
	}
	return rc, mimeType, nil
}

func (s *GCSPhotoStore) Delete(ctx context.Context, storageKey string) error {
	if err := s.client.Bucket(s.bucket).Object(storageKey).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return photostore.ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *GCSPhotoStore) URL(storageKey string) string {
	return s.publicBaseURL + "/" + url.PathEscape(storageKey)
}

func (s *GCSPhotoStore) Close() error {
	return s.client.Close()
}
