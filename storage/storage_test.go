package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"tickerlake/apperror"
	"tickerlake/config"
	"tickerlake/ohlcv"
	"tickerlake/partition"
	"tickerlake/storage/storagetest"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func table(t *testing.T, instrument string, closes ...float64) *ohlcv.Table {
	t.Helper()
	bars := make([]ohlcv.Bar, len(closes))
	for i, c := range closes {
		bars[i] = ohlcv.Bar{Date: day(2024, 1, 15+i), Open: c - 1, High: c + 2, Low: c - 2, Close: c, Volume: int64(1000 * (i + 1))}
	}
	tbl, err := ohlcv.NewTable(instrument, bars)
	require.NoError(t, err)
	return tbl
}

func key(t *testing.T, instrument string, date time.Time) partition.Key {
	t.Helper()
	k, err := partition.Build(instrument, date)
	require.NoError(t, err)
	return k
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"local", Local},
		{" Local ", Local},
		{"cloud", Cloud},
		{"gcp", Cloud},
		{"GCS", Cloud},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseTarget("ftp")
	assert.Equal(t, apperror.UnsupportedTarget, apperror.CodeOf(err))
}

func TestCheckConfig(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		cfg    config.StorageConfig
		code   apperror.Code
	}{
		{"local ok", Local, config.StorageConfig{LocalRootPath: "lake"}, ""},
		{"local missing root", Local, config.StorageConfig{}, apperror.InvalidIdentifier},
		{"cloud ok", Cloud, config.StorageConfig{BucketName: "market-data"}, ""},
		{"cloud empty bucket", Cloud, config.StorageConfig{BucketName: "  "}, apperror.InvalidIdentifier},
		{"cloud placeholder bucket", Cloud, config.StorageConfig{BucketName: config.PlaceholderBucketName}, apperror.InvalidIdentifier},
		{"cloud bucket with path", Cloud, config.StorageConfig{BucketName: "market/data"}, apperror.InvalidIdentifier},
		{"unknown target", Target("tape"), config.StorageConfig{}, apperror.UnsupportedTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfig(tt.target, tt.cfg)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestLocation_URIs(t *testing.T) {
	k1 := key(t, "AAPL", day(2024, 1, 15))
	k2 := key(t, "AAPL", day(2024, 1, 16))

	loc := Location{}.Add(Location{Target: Cloud, Root: "gs://lake", Keys: []partition.Key{k1}, Bytes: 10})
	loc = loc.Add(Location{Target: Cloud, Root: "gs://lake", Keys: []partition.Key{k2}, Bytes: 5})

	assert.Equal(t, Cloud, loc.Target)
	assert.Equal(t, int64(15), loc.Bytes)
	assert.Equal(t, []string{
		"gs://lake/ticker=AAPL/date=2024-01-15.csv",
		"gs://lake/ticker=AAPL/date=2024-01-16.csv",
	}, loc.URIs())
}

func TestLocal_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := NewLocal(root, nil)
	require.NoError(t, err)

	k := key(t, "RELIANCE.NS", day(2024, 1, 16))
	want := table(t, "RELIANCE.NS", 2600, 2641.5)

	loc, err := b.Write(ctx, k, want)
	require.NoError(t, err)
	assert.Equal(t, Local, loc.Target)
	assert.Equal(t, []partition.Key{k}, loc.Keys)
	assert.Positive(t, loc.Bytes)

	path := filepath.Join(root, "ticker=RELIANCE.NS", "date=2024-01-16.csv")
	assert.FileExists(t, path)
	assert.Equal(t, path, loc.URI(k))

	got, err := b.Read(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, want.Bars(), got.Bars())

	ok, err := b.Exists(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocal_WriteReplacesExisting(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	k := key(t, "AAPL", day(2024, 1, 16))
	_, err = b.Write(ctx, k, table(t, "AAPL", 1, 2, 3))
	require.NoError(t, err)
	_, err = b.Write(ctx, k, table(t, "AAPL", 9))
	require.NoError(t, err)

	got, err := b.Read(ctx, k)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, 9.0, got.Last().Close)

	entries, err := os.ReadDir(filepath.Dir(filepath.Join(b.Root(), filepath.FromSlash(k.Path()))))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestLocal_ReadMissing(t *testing.T) {
	b, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = b.Read(context.Background(), key(t, "AAPL", day(2024, 1, 16)))
	assert.Equal(t, apperror.DataUnavailable, apperror.CodeOf(err))

	ok, err := b.Exists(context.Background(), key(t, "AAPL", day(2024, 1, 16)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal_List(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	keys, err := b.List(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, d := range []time.Time{day(2024, 1, 17), day(2024, 1, 15), day(2024, 1, 16)} {
		_, err := b.Write(ctx, key(t, "AAPL", d), table(t, "AAPL", 1))
		require.NoError(t, err)
	}
	_, err = b.Write(ctx, key(t, "MSFT", day(2024, 1, 15)), table(t, "MSFT", 1))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(b.Root(), "ticker=AAPL", "notes.txt"), []byte("x"), 0o644))

	keys, err = b.List(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, keys, 3)
	for i, k := range keys {
		assert.Equal(t, "AAPL", k.Instrument())
		assert.Equal(t, day(2024, 1, 15+i), k.Date())
	}

	_, err = b.List(ctx, "A/B")
	assert.Equal(t, apperror.InvalidIdentifier, apperror.CodeOf(err))
}

func TestCloud_WriteReadList(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewMemStore()
	b := NewCloud(store, "market-data", "gs", nil)

	k := key(t, "AAPL", day(2024, 1, 16))
	want := table(t, "AAPL", 185.2, 186.9)

	loc, err := b.Write(ctx, k, want)
	require.NoError(t, err)
	assert.Equal(t, "gs://market-data", loc.Root)
	assert.Equal(t, "gs://market-data/ticker=AAPL/date=2024-01-16.csv", loc.URI(k))
	assert.Equal(t, "text/csv", store.ContentType(k.Path()))

	got, err := b.Read(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, want.Bars(), got.Bars())

	keys, err := b.List(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []partition.Key{k}, keys)

	_, err = b.Read(ctx, key(t, "AAPL", day(2020, 1, 1)))
	assert.Equal(t, apperror.DataUnavailable, apperror.CodeOf(err))
}

func TestCloud_FailedPutLeavesNoObject(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewMemStore()
	store.PutErr = errors.New("connection reset by peer")
	b := NewCloud(store, "market-data", "gs", nil)

	k := key(t, "AAPL", day(2024, 1, 16))
	_, err := b.Write(ctx, k, table(t, "AAPL", 1))
	assert.Equal(t, apperror.StorageIOError, apperror.CodeOf(err))

	ok, err := b.Exists(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestCloud_KeepsStoreErrorCode(t *testing.T) {
	store := storagetest.NewMemStore()
	store.PutErr = apperror.New(apperror.AuthenticationError, "token expired")
	b := NewCloud(store, "market-data", "gs", nil)

	_, err := b.Write(context.Background(), key(t, "AAPL", day(2024, 1, 16)), table(t, "AAPL", 1))
	assert.Equal(t, apperror.AuthenticationError, apperror.CodeOf(err))
}

func TestOpen_S3WithoutCredentialsMakesNoRequests(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	for _, k := range []string{"AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY"} {
		t.Setenv(k, "")
	}

	cfg := config.StorageConfig{
		BucketName:        "market-data",
		Driver:            "s3",
		Endpoint:          strings.TrimPrefix(srv.URL, "http://"),
		Insecure:          true,
		Region:            "us-east-1",
		CredentialsSource: "env",
	}
	_, err := Open(context.Background(), Cloud, cfg, nil)
	assert.Equal(t, apperror.AuthenticationError, apperror.CodeOf(err))
	assert.Zero(t, requests.Load())
}

func TestS3Store_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>InvalidAccessKeyId</Code><Message>The key does not exist.</Message></Error>`))
	}))
	defer srv.Close()

	store, err := NewS3Store(config.StorageConfig{
		BucketName:        "market-data",
		Endpoint:          strings.TrimPrefix(srv.URL, "http://"),
		Insecure:          true,
		Region:            "us-east-1",
		CredentialsSource: "static",
		AccessKeyID:       "GOOG1EXAMPLE",
		SecretAccessKey:   "secret",
	})
	require.NoError(t, err)

	err = store.Put(context.Background(), "ticker=AAPL/date=2024-01-16.csv", []byte("date\n"), "text/csv")
	assert.Equal(t, apperror.AuthenticationError, apperror.CodeOf(err))
}

func TestClassifyS3(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperror.Code
	}{
		{"access denied", minio.ErrorResponse{StatusCode: http.StatusForbidden, Code: "AccessDenied"}, apperror.AuthenticationError},
		{"bad signature", minio.ErrorResponse{StatusCode: http.StatusBadRequest, Code: "SignatureDoesNotMatch"}, apperror.AuthenticationError},
		{"missing key", minio.ErrorResponse{StatusCode: http.StatusNotFound, Code: "NoSuchKey"}, apperror.DataUnavailable},
		{"server error", minio.ErrorResponse{StatusCode: http.StatusInternalServerError, Code: "InternalError"}, apperror.StorageIOError},
		{"transport", errors.New("dial tcp: connection refused"), apperror.StorageIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperror.CodeOf(classifyS3(tt.err, "put")))
		})
	}
	assert.NoError(t, classifyS3(nil, "put"))
}

func TestClassifyGCS(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperror.Code
	}{
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, apperror.AuthenticationError},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, apperror.AuthenticationError},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, apperror.DataUnavailable},
		{"unavailable", &googleapi.Error{Code: http.StatusServiceUnavailable}, apperror.StorageIOError},
		{"transport", errors.New("i/o timeout"), apperror.StorageIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperror.CodeOf(classifyGCS(tt.err, "insert")))
		})
	}
}

func TestNewGCSStore_MissingCredentialsFile(t *testing.T) {
	_, err := NewGCSStore(context.Background(), config.StorageConfig{
		BucketName:        "market-data",
		Driver:            "gcs",
		CredentialsSource: "file",
		CredentialsFile:   filepath.Join(t.TempDir(), "missing.json"),
	})
	assert.Equal(t, apperror.AuthenticationError, apperror.CodeOf(err))
}
