package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/logger"
)

// GCS keeps blobs in a Cloud Storage bucket under an optional prefix.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	log    *logger.Logger
}

// NewGCS uses application default credentials.
func NewGCS(ctx context.Context, bucket, prefix string, log *logger.Logger) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs storage needs a bucket")
	}
	if log == nil {
		log = logger.Nop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	log.Info("Object storage initialized", "backend", "gcs", "bucket", bucket, "prefix", prefix)
	return &GCS{client: client, bucket: bucket, prefix: prefix, log: log.With("service", "BlobStore")}, nil
}

func (s *GCS) object(key string) (*storage.ObjectHandle, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	if s.prefix != "" {
		k = path.Join(s.prefix, k)
	}
	return s.client.Bucket(s.bucket).Object(k), nil
}

func (s *GCS) Put(ctx context.Context, key string, data []byte, contentType string) error {
	obj, err := s.object(key)
	if err != nil {
		return err
	}
	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", key, err)
	}
	return nil
}

func (s *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.object(key)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, apperr.NotFoundf("blob %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *GCS) URI(key string) string {
	k, err := cleanKey(key)
	if err != nil {
		return key
	}
	if s.prefix != "" {
		k = path.Join(s.prefix, k)
	}
	return "gs://" + s.bucket + "/" + k
}

func (s *GCS) Close() error {
	return s.client.Close()
}
