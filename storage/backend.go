package storage

import (
	"context"
	"log/slog"
	"strings"

	"tickerlake/apperror"
	"tickerlake/config"
	"tickerlake/ohlcv"
	"tickerlake/partition"
)

// Backend stores and retrieves tables by partition key.
type Backend interface {
	Target() Target
	// Write stores t at key, replacing any artifact already there.
	Write(ctx context.Context, key partition.Key, t *ohlcv.Table) (Location, error)
	Exists(ctx context.Context, key partition.Key) (bool, error)
	// Read fails with DataUnavailable when nothing is stored at key.
	Read(ctx context.Context, key partition.Key) (*ohlcv.Table, error)
	// List returns the keys stored for instrument in date order.
	List(ctx context.Context, instrument string) ([]partition.Key, error)
}

// Location describes where a run's artifacts were written. Root is an absolute directory for Local and
// `<scheme>://<bucket>` for Cloud.
type Location struct {
	Target Target
	Root   string
	Keys   []partition.Key
	Bytes  int64
}

// URI addresses the artifact of key within the location.
func (l Location) URI(key partition.Key) string {
	return l.Root + "/" + key.Path()
}

// URIs addresses every artifact of the location.
func (l Location) URIs() []string {
	out := make([]string, len(l.Keys))
	for i, k := range l.Keys {
		out[i] = l.URI(k)
	}
	return out
}

// Add folds another write into the location. Both must share target and root.
func (l Location) Add(other Location) Location {
	if l.Root == "" {
		l.Target, l.Root = other.Target, other.Root
	}
	l.Keys = append(l.Keys, other.Keys...)
	l.Bytes += other.Bytes
	return l
}

// CheckConfig verifies, without any I/O, that cfg is usable for target.
func CheckConfig(target Target, cfg config.StorageConfig) error {
	switch target {
	case Local:
		if cfg.LocalRootPath == "" {
			return apperror.New(apperror.InvalidIdentifier, "storage.local_root_path is not configured")
		}
		return nil
	case Cloud:
		bucket := strings.TrimSpace(cfg.BucketName)
		if bucket == "" || bucket == config.PlaceholderBucketName {
			return apperror.New(apperror.InvalidIdentifier, "storage.bucket_name is not configured")
		}
		if strings.ContainsAny(bucket, "/ ") {
			return apperror.Newf(apperror.InvalidIdentifier, "storage.bucket_name %q is not a bucket name", bucket)
		}
		return nil
	default:
		return apperror.Newf(apperror.UnsupportedTarget, "unsupported storage target %q", target)
	}
}

// Open builds the backend for target. For Cloud this resolves credentials, so a missing or unusable
// credential fails here with AuthenticationError before any object is touched.
func Open(ctx context.Context, target Target, cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	if err := CheckConfig(target, cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	if target == Local {
		return NewLocal(cfg.LocalRootPath, logger)
	}

	var (
		store ObjectStore
		err   error
	)
	switch cfg.Driver {
	case "s3":
		store, err = NewS3Store(cfg)
	case "gcs":
		store, err = NewGCSStore(ctx, cfg)
	default:
		return nil, apperror.Newf(apperror.UnsupportedTarget, "unsupported cloud storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return NewCloud(store, cfg.BucketName, cfg.URIScheme, logger), nil
}
