package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerlake/apperror"
	"tickerlake/config"
	"tickerlake/database"
	"tickerlake/ohlcv"
	"tickerlake/partition"
	"tickerlake/processing"
	"tickerlake/storage"
	"tickerlake/storage/storagetest"
)

type stubFetcher struct {
	table *ohlcv.Table
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string, _ ohlcv.Period) (*ohlcv.Table, error) {
	f.calls++
	return f.table, f.err
}

type stubCatalog struct {
	entries []database.Entry
	err     error
}

func (c *stubCatalog) Record(_ context.Context, entries []database.Entry) error {
	c.entries = append(c.entries, entries...)
	return c.err
}

func (c *stubCatalog) LatestPartition(context.Context, string, string) (time.Time, error) {
	return time.Time{}, c.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleTable(t *testing.T, instrument string) *ohlcv.Table {
	t.Helper()
	tbl, err := ohlcv.NewTable(instrument, []ohlcv.Bar{
		{Date: day(2024, 1, 11), Open: 2580, High: 2610, Low: 2570, Close: 2600, Volume: 4_100_000},
		{Date: day(2024, 1, 12), Open: 2600, High: 2640, Low: 2595, Close: 2630, Volume: 3_900_000},
		{Date: day(2024, 1, 15), Open: 2630, High: 2660, Low: 2620, Close: 2641, Volume: 5_400_000},
	})
	require.NoError(t, err)
	return tbl
}

func testConfig(t *testing.T, partitioning string) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			LocalRootPath:     filepath.Join(t.TempDir(), "lake"),
			Partitioning:      partitioning,
			BucketName:        "market-data",
			Driver:            "s3",
			Endpoint:          "127.0.0.1:1",
			Region:            "auto",
			Insecure:          true,
			CredentialsSource: "env",
			URIScheme:         "gs",
		},
		Processing: config.ProcessingConfig{OutputDir: t.TempDir(), RollingWindow: 2},
	}
}

func request(instrument string, st storage.Target, pt processing.Target) RunRequest {
	return RunRequest{Instrument: instrument, Period: ohlcv.PeriodMonth, Storage: st, Processing: pt}
}

func TestRun_LocalToLocalAnalysis(t *testing.T) {
	cfg := testConfig(t, "run")
	fetcher := &stubFetcher{table: sampleTable(t, "RELIANCE.NS")}
	catalog := &stubCatalog{}

	res, err := New(cfg, fetcher, WithCatalog(catalog)).Run(context.Background(), request("RELIANCE.NS", storage.Local, processing.Local))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, Dispatched, res.State)
	assert.Equal(t, []State{Pending, Fetching, KeyBuilt, Stored, Dispatched}, res.History)
	require.Len(t, res.Keys, 1)
	assert.Equal(t, "ticker=RELIANCE.NS/date=2024-01-15", res.Keys[0].String())
	assert.FileExists(t, filepath.Join(cfg.Storage.LocalRootPath, "ticker=RELIANCE.NS", "date=2024-01-15.csv"))

	require.NotNil(t, res.Outcome)
	assert.Equal(t, 3, res.Outcome.Summary.Bars)
	assert.FileExists(t, res.Outcome.ReportPath)

	assert.Equal(t, uint64(1), res.Metrics.Partitions())

	require.Len(t, catalog.entries, 1)
	assert.Equal(t, res.RunID, catalog.entries[0].RunID)
	assert.Equal(t, "local", catalog.entries[0].Target)
	assert.Equal(t, res.Location.Bytes, catalog.entries[0].Bytes)
}

func TestRun_RoundTripThroughLocalStorage(t *testing.T) {
	cfg := testConfig(t, "run")
	want := sampleTable(t, "AAPL")

	res, err := New(cfg, &stubFetcher{table: want}).Run(context.Background(), request("AAPL", storage.Local, processing.Remote))
	require.NoError(t, err)

	local, err := storage.NewLocal(cfg.Storage.LocalRootPath, nil)
	require.NoError(t, err)
	got, err := local.Read(context.Background(), res.Keys[0])
	require.NoError(t, err)
	assert.Equal(t, want.Bars(), got.Bars())
}

func TestRun_DailyPartitioning(t *testing.T) {
	cfg := testConfig(t, "daily")

	res, err := New(cfg, &stubFetcher{table: sampleTable(t, "AAPL")}).Run(context.Background(), request("AAPL", storage.Local, processing.Local))
	require.NoError(t, err)

	require.Len(t, res.Keys, 3)
	for i, d := range []time.Time{day(2024, 1, 11), day(2024, 1, 12), day(2024, 1, 15)} {
		assert.Equal(t, d, res.Keys[i].Date())
	}
	assert.Equal(t, 3, res.Outcome.Summary.Bars)
	assert.Equal(t, uint64(3), res.Metrics.Partitions())
}

func TestRun_SeparatorInInstrumentStopsBeforeFetch(t *testing.T) {
	cfg := testConfig(t, "run")
	fetcher := &stubFetcher{table: sampleTable(t, "AAPL")}
	opened := 0
	dispatched := 0

	o := New(cfg, fetcher,
		WithBackendOpener(func(context.Context, storage.Target) (storage.Backend, error) {
			opened++
			return nil, errors.New("unexpected")
		}),
		WithDispatcherFactory(func(processing.Target) (processing.Dispatcher, error) {
			dispatched++
			return nil, errors.New("unexpected")
		}),
	)

	res, err := o.Run(context.Background(), request("A=B", storage.Local, processing.Local))
	require.Error(t, err)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageValidate, serr.Stage)
	assert.Equal(t, apperror.InvalidIdentifier, serr.Code())
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, []State{Pending, Failed}, res.History)
	assert.Zero(t, fetcher.calls)
	assert.Zero(t, opened)
	assert.Zero(t, dispatched)
}

func TestRun_ValidationErrors(t *testing.T) {
	cfg := testConfig(t, "run")
	tests := []struct {
		name string
		req  RunRequest
		code apperror.Code
	}{
		{"empty instrument", request("", storage.Local, processing.Local), apperror.InvalidIdentifier},
		{"slash", request("A/B", storage.Local, processing.Local), apperror.InvalidIdentifier},
		{"bad period", RunRequest{Instrument: "AAPL", Period: "2w", Storage: storage.Local, Processing: processing.Local}, apperror.InvalidIdentifier},
		{"bad storage", request("AAPL", storage.Target("ftp"), processing.Local), apperror.UnsupportedTarget},
		{"bad processing", request("AAPL", storage.Local, processing.Target("spark")), apperror.UnsupportedTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{}
			_, err := New(cfg, fetcher).Run(context.Background(), tt.req)

			var serr *StageError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, StageValidate, serr.Stage)
			assert.Equal(t, tt.code, serr.Code())
			assert.Zero(t, fetcher.calls)
		})
	}
}

func TestRun_PlaceholderBucketRejectedBeforeFetch(t *testing.T) {
	cfg := testConfig(t, "run")
	cfg.Storage.BucketName = config.PlaceholderBucketName
	fetcher := &stubFetcher{table: sampleTable(t, "AAPL")}

	_, err := New(cfg, fetcher).Run(context.Background(), request("AAPL", storage.Cloud, processing.Remote))

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageValidate, serr.Stage)
	assert.Equal(t, apperror.InvalidIdentifier, serr.Code())
	assert.Zero(t, fetcher.calls)
}

func TestRun_FetchFailure(t *testing.T) {
	cfg := testConfig(t, "run")
	fetcher := &stubFetcher{err: errors.New("connection refused")}

	res, err := New(cfg, fetcher).Run(context.Background(), request("AAPL", storage.Local, processing.Local))

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageFetch, serr.Stage)
	assert.Equal(t, apperror.ProviderError, serr.Code())
	assert.Equal(t, []State{Pending, Fetching, Failed}, res.History)
	assert.Empty(t, res.Keys)
}

func TestRun_NoDataFetched(t *testing.T) {
	empty, err := ohlcv.NewTable("AAPL", nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		table *ohlcv.Table
	}{
		{"nil table", nil},
		{"empty table", empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "run")
			opened := 0
			o := New(cfg, &stubFetcher{table: tt.table},
				WithBackendOpener(func(context.Context, storage.Target) (storage.Backend, error) {
					opened++
					return nil, errors.New("unexpected")
				}),
			)

			res, err := o.Run(context.Background(), request("AAPL", storage.Local, processing.Local))

			var serr *StageError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, StageFetch, serr.Stage)
			assert.Equal(t, apperror.ProviderError, serr.Code())
			assert.Equal(t, []State{Pending, Fetching, Failed}, res.History)
			assert.Empty(t, res.Keys)
			assert.Zero(t, opened)
		})
	}
}

func TestRun_CloudWithoutCredentials(t *testing.T) {
	for _, k := range []string{"AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY"} {
		t.Setenv(k, "")
	}
	cfg := testConfig(t, "run")

	res, err := New(cfg, &stubFetcher{table: sampleTable(t, "AAPL")}).Run(context.Background(), request("AAPL", storage.Cloud, processing.Remote))

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageStore, serr.Stage)
	assert.Equal(t, apperror.AuthenticationError, serr.Code())
	assert.Equal(t, []State{Pending, Fetching, KeyBuilt, Failed}, res.History)
	assert.Empty(t, res.Location.Keys)
	assert.Nil(t, res.Outcome)
}

func TestRun_CloudToRemote(t *testing.T) {
	cfg := testConfig(t, "run")
	store := storagetest.NewMemStore()
	o := New(cfg, &stubFetcher{table: sampleTable(t, "RELIANCE.NS")},
		WithBackendOpener(func(_ context.Context, target storage.Target) (storage.Backend, error) {
			require.Equal(t, storage.Cloud, target)
			return storage.NewCloud(store, cfg.Storage.BucketName, cfg.Storage.URIScheme, nil), nil
		}),
	)

	res, err := o.Run(context.Background(), request("RELIANCE.NS", storage.Cloud, processing.Remote))
	require.NoError(t, err)

	key := res.Keys[0].String()
	assert.Equal(t, "ticker=RELIANCE.NS/date=2024-01-15", key)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "gs://market-data", res.Location.Root)
	assert.Contains(t, res.Outcome.Code, key)
	assert.Contains(t, res.Outcome.Code, "gs://market-data/"+key+partition.Extension)
}

func TestRun_CloudWithoutLocalCopyForLocalAnalysis(t *testing.T) {
	cfg := testConfig(t, "run")
	store := storagetest.NewMemStore()
	o := New(cfg, &stubFetcher{table: sampleTable(t, "AAPL")},
		WithBackendOpener(func(context.Context, storage.Target) (storage.Backend, error) {
			return storage.NewCloud(store, cfg.Storage.BucketName, cfg.Storage.URIScheme, nil), nil
		}),
	)

	res, err := o.Run(context.Background(), request("AAPL", storage.Cloud, processing.Local))

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageDispatch, serr.Stage)
	assert.Equal(t, apperror.DataUnavailable, serr.Code())
	assert.Equal(t, []State{Pending, Fetching, KeyBuilt, Stored, Failed}, res.History)
	assert.Equal(t, 1, store.Len(), "a successful store is not rolled back")
}

func TestRun_CatalogFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t, "run")
	catalog := &stubCatalog{err: errors.New("connection reset")}

	res, err := New(cfg, &stubFetcher{table: sampleTable(t, "AAPL")}, WithCatalog(catalog)).
		Run(context.Background(), request("AAPL", storage.Local, processing.Remote))
	require.NoError(t, err)
	assert.Equal(t, Dispatched, res.State)
}

func TestState(t *testing.T) {
	assert.Equal(t, "key_built", KeyBuilt.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Failed.Terminal())
	assert.True(t, Dispatched.Terminal())
	assert.False(t, Stored.Terminal())
	assert.Equal(t, Dispatched, Stored.next())
	assert.Equal(t, Failed, Dispatched.next())
}

func TestStageError(t *testing.T) {
	cause := errors.New("disk full")
	err := stageError(StageStore, cause)

	assert.Equal(t, apperror.StorageIOError, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "store: STORAGE_IO_ERROR")

	coded := stageError(StageStore, apperror.New(apperror.AuthenticationError, "no credentials"))
	assert.Equal(t, apperror.AuthenticationError, coded.Code())
}
