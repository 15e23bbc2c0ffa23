package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"

	"tickerlake/apperror"
	"tickerlake/config"
)

// GCSStore talks to the Google Cloud Storage JSON API.
type GCSStore struct {
	service *gcs.Service
	bucket  string
}

// NewGCSStore authenticates with a service account key file ("file") or application default
// credentials ("adc"). Missing credentials fail with AuthenticationError before any request.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	opts := []option.ClientOption{option.WithScopes(gcs.DevstorageReadWriteScope)}

	switch cfg.CredentialsSource {
	case "file":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, apperror.Wrap(apperror.AuthenticationError, err, "read credentials file")
		}
		opts = append(opts, option.WithCredentialsJSON(data))
	case "adc", "":
	default:
		return nil, apperror.Newf(apperror.AuthenticationError, "credentials source %q is not supported by the gcs driver", cfg.CredentialsSource)
	}
	if cfg.Endpoint != "" && cfg.Endpoint != config.DefaultS3Endpoint {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	return newGCSStore(ctx, cfg.BucketName, opts...)
}

func newGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	service, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, apperror.Wrap(apperror.AuthenticationError, err, "create gcs client")
	}
	return &GCSStore{service: service, bucket: bucket}, nil
}

// Put sends the object in one request. Resumable uploads are disabled so that a failed call leaves
// the previous generation, if any, untouched.
func (s *GCSStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.service.Objects.Insert(s.bucket, &gcs.Object{Name: name, ContentType: contentType}).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType), googleapi.ChunkSize(0)).
		Context(ctx).
		Do()
	return classifyGCS(err, "insert "+name)
}

func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.service.Objects.Get(s.bucket, name).Context(ctx).Download()
	if err != nil {
		return nil, classifyGCS(err, "download "+name)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "download "+name)
	}
	return data, nil
}

func (s *GCSStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.service.Objects.Get(s.bucket, name).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	err = classifyGCS(err, "get "+name)
	if apperror.Is(err, apperror.DataUnavailable) {
		return false, nil
	}
	return false, err
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.service.Objects.List(s.bucket).Prefix(prefix).Pages(ctx, func(objs *gcs.Objects) error {
		for _, obj := range objs.Items {
			names = append(names, obj.Name)
		}
		return nil
	})
	if err != nil {
		return nil, classifyGCS(err, "list "+prefix)
	}
	return names, nil
}

func classifyGCS(err error, message string) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apperror.Wrap(apperror.StorageIOError, err, message)
	}
	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperror.Wrap(apperror.AuthenticationError, err, message)
	case http.StatusNotFound:
		return apperror.Wrap(apperror.DataUnavailable, err, fmt.Sprintf("%s: not found", message))
	default:
		return apperror.Wrap(apperror.StorageIOError, err, message)
	}
}
