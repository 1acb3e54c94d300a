package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrObjectNotExist is returned when a referenced object is missing from
// the bucket.
var ErrObjectNotExist = errors.New("object does not exist")

// ObjectStore uploads files and exposes them by public URL.
type ObjectStore interface {
	// Upload stores the local file under objectPath and returns its
	// public URL.
	Upload(ctx context.Context, localPath, objectPath string) (string, error)
	// MakePublic grants public read access to an already stored object.
	MakePublic(ctx context.Context, objectPath string) (string, error)
}

var _ ObjectStore = (*GCSStore)(nil)

// GCSStore is the Google Cloud Storage implementation of ObjectStore.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore connects to GCS. An empty credentialsFile falls back to
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Upload(ctx context.Context, localPath, objectPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer file.Close()

	object := s.client.Bucket(s.bucket).Object(objectPath)
	writer := object.NewWriter(ctx)
	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	if _, err := s.MakePublic(ctx, objectPath); err != nil {
		return "", err
	}

	return s.publicURL(objectPath), nil
}

func (s *GCSStore) MakePublic(ctx context.Context, objectPath string) (string, error) {
	object := s.client.Bucket(s.bucket).Object(objectPath)

	if _, err := object.Attrs(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotExist, objectPath)
		}
		return "", fmt.Errorf("failed to stat object: %w", err)
	}

	if err := object.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return "", fmt.Errorf("failed to set public acl: %w", err)
	}

	return s.publicURL(objectPath), nil
}

func (s *GCSStore) publicURL(objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectPath)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
