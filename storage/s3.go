package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tickerlake/apperror"
	"tickerlake/config"
)

// S3Store talks to an S3-compatible endpoint. Against storage.googleapis.com it reaches Google Cloud
// Storage through its interoperability API using HMAC keys.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store resolves credentials from cfg.CredentialsSource ("env" or "static") and builds a client.
// It makes no requests.
func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	id, secret, token, err := s3Credentials(cfg)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(id, secret, token),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "create s3 client")
	}
	return &S3Store{client: client, bucket: cfg.BucketName}, nil
}

func s3Credentials(cfg config.StorageConfig) (id, secret, token string, err error) {
	switch cfg.CredentialsSource {
	case "static":
		id, secret = cfg.AccessKeyID, cfg.SecretAccessKey
	case "env":
		id = firstEnv("AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY")
		secret = firstEnv("AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY")
		token = os.Getenv("AWS_SESSION_TOKEN")
	default:
		return "", "", "", apperror.Newf(apperror.AuthenticationError, "credentials source %q is not supported by the s3 driver", cfg.CredentialsSource)
	}

	if id == "" || secret == "" {
		return "", "", "", apperror.Newf(apperror.AuthenticationError, "no s3 credentials found (source %s)", cfg.CredentialsSource)
	}
	return id, secret, token, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Put uploads without multipart, so an interrupted upload never produces an object.
func (s *S3Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	})
	return classifyS3(err, "put "+name)
}

func (s *S3Store) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3(err, "get "+name)
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; a missing object surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyS3(err, "get "+name)
	}
	return data, nil
}

func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	err = classifyS3(err, "stat "+name)
	if apperror.Is(err, apperror.DataUnavailable) {
		return false, nil
	}
	return false, err
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, classifyS3(obj.Err, "list "+prefix)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

func classifyS3(err error, message string) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		resp.Code == "AccessDenied", resp.Code == "InvalidAccessKeyId", resp.Code == "SignatureDoesNotMatch":
		return apperror.Wrap(apperror.AuthenticationError, err, message)
	case resp.StatusCode == http.StatusNotFound, resp.Code == "NoSuchKey", resp.Code == "NoSuchBucket":
		return apperror.Wrap(apperror.DataUnavailable, err, message)
	default:
		return apperror.Wrap(apperror.StorageIOError, err, message)
	}
}
