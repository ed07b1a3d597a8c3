package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSource reads documents from a Google Cloud Storage bucket.
type GCSSource struct {
	client *storage.Client
	bucket string
}

// NewGCSSource uses application default credentials unless credentialsFile is set.
func NewGCSSource(ctx context.Context, bucket, credentialsFile string) (*GCSSource, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadOnly)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client failed: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket}, nil
}

func (s *GCSSource) Download(ctx context.Context, ref string) ([]byte, error) {
	key := normalizeKey(ref)
	if key == "" {
		return nil, ErrNotFound
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open gcs object failed: %w", err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gcs object failed: %w", err)
	}
	return b, nil
}

func (s *GCSSource) Close() error {
	return s.client.Close()
}
