package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tickerlake/apperror"
	"tickerlake/ohlcv"
	"tickerlake/partition"
)

const csvContentType = "text/csv"

// ObjectStore is the narrow view of a bucket the Cloud backend needs. Implementations report failures
// as apperror codes: AuthenticationError for rejected credentials, DataUnavailable for missing
// objects and StorageIOError otherwise.
type ObjectStore interface {
	// Put uploads data as name in a single request; on failure no object is created or replaced.
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// CloudBackend stores artifacts as objects in a bucket.
type CloudBackend struct {
	store  ObjectStore
	bucket string
	scheme string
	logger *slog.Logger
}

func NewCloud(store ObjectStore, bucket, scheme string, logger *slog.Logger) *CloudBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if scheme == "" {
		scheme = "gs"
	}
	return &CloudBackend{store: store, bucket: bucket, scheme: scheme, logger: logger}
}

func (c *CloudBackend) Target() Target { return Cloud }

// Root is the URI prefix of every object, e.g. gs://bucket.
func (c *CloudBackend) Root() string { return c.scheme + "://" + c.bucket }

func (c *CloudBackend) Write(ctx context.Context, key partition.Key, t *ohlcv.Table) (Location, error) {
	data, err := ohlcv.MarshalCSV(t)
	if err != nil {
		return Location{}, apperror.Wrap(apperror.StorageIOError, err, "encode "+key.String())
	}

	if err := c.store.Put(ctx, key.Path(), data, csvContentType); err != nil {
		return Location{}, coded(err, "upload "+key.Path())
	}

	c.logger.Debug("uploaded artifact", "bucket", c.bucket, "object", key.Path(), "rows", t.Len(), "bytes", len(data))
	return Location{Target: Cloud, Root: c.Root(), Keys: []partition.Key{key}, Bytes: int64(len(data))}, nil
}

func (c *CloudBackend) Exists(ctx context.Context, key partition.Key) (bool, error) {
	ok, err := c.store.Exists(ctx, key.Path())
	if err != nil {
		return false, coded(err, "stat "+key.Path())
	}
	return ok, nil
}

func (c *CloudBackend) Read(ctx context.Context, key partition.Key) (*ohlcv.Table, error) {
	data, err := c.store.Get(ctx, key.Path())
	if err != nil {
		return nil, coded(err, "download "+key.Path())
	}

	t, err := ohlcv.ReadCSV(bytes.NewReader(data), key.Instrument())
	if err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "decode "+key.Path())
	}
	return t, nil
}

func (c *CloudBackend) List(ctx context.Context, instrument string) ([]partition.Key, error) {
	prefix, err := partition.InstrumentPrefix(instrument)
	if err != nil {
		return nil, err
	}

	names, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, coded(err, "list "+prefix)
	}

	var keys []partition.Key
	for _, name := range names {
		if !strings.HasSuffix(name, partition.Extension) {
			continue
		}
		k, err := partition.Parse(name)
		if err != nil {
			c.logger.Warn("skipping unrecognised object under partition prefix", "object", name)
			continue
		}
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys, nil
}

func (c *CloudBackend) String() string {
	return fmt.Sprintf("cloud(%s)", c.Root())
}

// coded keeps an ObjectStore's error code and treats uncoded errors as transport failures.
func coded(err error, message string) error {
	if apperror.CodeOf(err) != "" {
		return err
	}
	return apperror.Wrap(apperror.StorageIOError, err, message)
}
