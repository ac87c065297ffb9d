package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSStore keeps objects in a Google Cloud Storage bucket through the JSON API
type GCSStore struct {
	svc    *storage.Service
	bucket string
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore creates a store for bucket. Credentials come from the
// environment unless opts override them.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSStore{svc: svc, bucket: bucket}, nil
}

func (s *GCSStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.svc.Objects.Get(s.bucket, key).Context(ctx).Download()
	if err != nil {
		if isGCSNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (s *GCSStore) PutObject(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	obj := &storage.Object{Name: key, ContentType: "application/json"}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType("application/json")).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *GCSStore) DeleteObject(ctx context.Context, key string) error {
	err := s.svc.Objects.Delete(s.bucket, key).Context(ctx).Do()
	if err != nil && !isGCSNotFound(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *GCSStore) ListKeys(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := s.svc.Objects.List(s.bucket).Prefix(prefix).Fields("items(name,size),nextPageToken").
		Pages(ctx, func(page *storage.Objects) error {
			for _, o := range page.Items {
				infos = append(infos, ObjectInfo{Key: o.Name, Size: int64(o.Size)})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return infos, nil
}

func (s *GCSStore) Ping(ctx context.Context) error {
	_, err := s.svc.Buckets.Get(s.bucket).Context(ctx).Do()
	return err
}

func isGCSNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
