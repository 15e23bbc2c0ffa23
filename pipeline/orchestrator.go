package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tickerlake/apperror"
	"tickerlake/config"
	"tickerlake/database"
	"tickerlake/ohlcv"
	"tickerlake/partition"
	"tickerlake/processing"
	"tickerlake/storage"
	"tickerlake/utils/progress_printer"
)

// Fetcher returns the bars of an instrument over a period. *ohlcv.Ingestion implements it.
type Fetcher interface {
	Fetch(ctx context.Context, instrument string, period ohlcv.Period) (*ohlcv.Table, error)
}

// Catalog records the partitions a run wrote. *database.Catalog implements it.
type Catalog interface {
	Record(ctx context.Context, entries []database.Entry) error
	LatestPartition(ctx context.Context, instrument, target string) (time.Time, error)
}

type (
	BackendOpener     func(ctx context.Context, target storage.Target) (storage.Backend, error)
	DispatcherFactory func(target processing.Target) (processing.Dispatcher, error)
)

// Result describes a finished run, successful or not.
type Result struct {
	RunID    string
	Request  RunRequest
	State    State
	History  []State
	Keys     []partition.Key
	Location storage.Location
	Outcome  *processing.Outcome
	Metrics  *ohlcv.Metrics
}

func (r *Result) transition(to State) {
	r.State = to
	r.History = append(r.History, to)
}

type Orchestrator struct {
	cfg           *config.Config
	fetcher       Fetcher
	openBackend   BackendOpener
	newDispatcher DispatcherFactory
	catalog       Catalog
	metrics       *ohlcv.Metrics
	progress      *progress_printer.ProgressPrinter
	logger        *slog.Logger
}

type Option func(*Orchestrator)

func WithCatalog(c Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

func WithProgress(p *progress_printer.ProgressPrinter) Option {
	return func(o *Orchestrator) { o.progress = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics shares m with the fetcher so that one report covers the whole run.
func WithMetrics(m *ohlcv.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithBackendOpener(fn BackendOpener) Option {
	return func(o *Orchestrator) { o.openBackend = fn }
}

func WithDispatcherFactory(fn DispatcherFactory) Option {
	return func(o *Orchestrator) { o.newDispatcher = fn }
}

func New(cfg *config.Config, fetcher Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, fetcher: fetcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = &ohlcv.Metrics{}
	}
	if o.openBackend == nil {
		o.openBackend = func(ctx context.Context, target storage.Target) (storage.Backend, error) {
			return storage.Open(ctx, target, o.cfg.Storage, o.logger)
		}
	}
	if o.newDispatcher == nil {
		o.newDispatcher = func(target processing.Target) (processing.Dispatcher, error) {
			return processing.New(target, o.cfg, o.logger)
		}
	}
	return o
}

// artifact is one table to be written at one key.
type artifact struct {
	key   partition.Key
	table *ohlcv.Table
}

const stages = 4

// Run executes req. On failure the returned Result is in state Failed and the error is a
// *StageError naming the stage that failed.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Request: req, State: Pending, History: []State{Pending}, Metrics: o.metrics}
	logger := o.logger.With("run_id", res.RunID, "ticker", req.Instrument)

	fail := func(stage Stage, err error) (*Result, error) {
		serr := stageError(stage, err)
		res.transition(Failed)
		o.metrics.SetStage("failed at " + string(stage))
		logger.Error("run failed", "stage", stage, "code", serr.Code(), "error", serr.Err)
		return res, serr
	}

	if err := req.Validate(); err != nil {
		return fail(StageValidate, err)
	}
	if err := storage.CheckConfig(req.Storage, o.cfg.Storage); err != nil {
		return fail(StageValidate, err)
	}
	logger.Info("run started", "period", req.Period, "storage", req.Storage, "processing", req.Processing,
		"partitioning", o.cfg.Storage.Partitioning)

	res.transition(res.State.next())
	o.step(1, "fetching "+req.Instrument)
	table, err := o.fetcher.Fetch(ctx, req.Instrument, req.Period)
	if err != nil {
		return fail(StageFetch, err)
	}
	if table == nil || table.Len() == 0 {
		return fail(StageFetch, apperror.Newf(apperror.ProviderError, "no data found for %q", req.Instrument))
	}

	artifacts, err := o.partition(table)
	if err != nil {
		return fail(StageKey, err)
	}
	for _, a := range artifacts {
		res.Keys = append(res.Keys, a.key)
	}
	res.transition(res.State.next())
	logger.Debug("partition keys built", "keys", len(res.Keys), "last", res.Keys[len(res.Keys)-1].String())

	o.step(2, "storing to "+string(req.Storage))
	loc, sizes, err := o.store(ctx, req.Storage, artifacts, logger)
	if err != nil {
		return fail(StageStore, err)
	}
	res.Location = loc
	res.transition(res.State.next())
	o.record(ctx, res, sizes, logger)

	o.step(3, "processing with "+string(req.Processing))
	dispatcher, err := o.newDispatcher(req.Processing)
	if err != nil {
		return fail(StageDispatch, err)
	}
	outcome, err := dispatcher.Dispatch(ctx, loc)
	if err != nil {
		return fail(StageDispatch, err)
	}
	res.Outcome = outcome
	res.transition(res.State.next())

	o.metrics.SetStage("done")
	o.step(4, "done")
	if o.progress != nil {
		o.progress.Complete(o.metrics.String())
	}
	logger.Info("run complete", "keys", len(res.Keys), "root", loc.Root, "bytes", loc.Bytes)
	return res, nil
}

// partition splits table into the artifacts of the configured partitioning mode: the whole table at
// the date of its last bar, or one artifact per bar.
func (o *Orchestrator) partition(table *ohlcv.Table) ([]artifact, error) {
	o.metrics.SetStage("key")
	instrument := table.Instrument()

	if o.cfg.Storage.Partitioning != "daily" {
		k, err := partition.Build(instrument, table.Last().Date)
		if err != nil {
			return nil, err
		}
		return []artifact{{key: k, table: table}}, nil
	}

	out := make([]artifact, 0, table.Len())
	for _, b := range table.Bars() {
		k, err := partition.Build(instrument, b.Date)
		if err != nil {
			return nil, err
		}
		t, err := ohlcv.NewTable(instrument, []ohlcv.Bar{b})
		if err != nil {
			return nil, err
		}
		out = append(out, artifact{key: k, table: t})
	}
	return out, nil
}

// store writes artifacts in order and returns where they landed with the size of each.
func (o *Orchestrator) store(ctx context.Context, target storage.Target, artifacts []artifact, logger *slog.Logger) (storage.Location, []int64, error) {
	o.metrics.SetStage("store")

	backend, err := o.openBackend(ctx, target)
	if err != nil {
		return storage.Location{}, nil, err
	}

	// Writes replace artifacts at the same keys; listing first only informs the log.
	if existing, err := backend.List(ctx, artifacts[0].key.Instrument()); err != nil {
		logger.Warn("could not list existing partitions", "error", err)
	} else if len(existing) > 0 {
		logger.Info("instrument already has partitions", "existing", len(existing),
			"first", existing[0].String(), "last", existing[len(existing)-1].String())
	}

	var (
		loc   storage.Location
		sizes = make([]int64, 0, len(artifacts))
	)
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return storage.Location{}, nil, err
		}
		written, err := backend.Write(ctx, a.key, a.table)
		if err != nil {
			return storage.Location{}, nil, err
		}
		loc = loc.Add(written)
		sizes = append(sizes, written.Bytes)
		o.metrics.Wrote(int(written.Bytes))
		if o.progress != nil {
			o.metrics.Print(o.progress)
		}
	}

	logger.Info("stored artifacts", "target", target, "root", loc.Root, "keys", len(loc.Keys), "bytes", loc.Bytes)
	return loc, sizes, nil
}

// record adds the stored partitions to the catalog. The catalog is advisory: failures are logged and
// the run carries on.
func (o *Orchestrator) record(ctx context.Context, res *Result, sizes []int64, logger *slog.Logger) {
	if o.catalog == nil {
		return
	}

	target := string(res.Request.Storage)
	if prev, err := o.catalog.LatestPartition(ctx, res.Request.Instrument, target); err != nil {
		logger.Warn("catalog lookup failed", "error", err)
	} else if !prev.IsZero() {
		logger.Debug("previous partition in catalog", "as_of", prev.Format(partition.DateFormat))
	}

	entries := make([]database.Entry, len(res.Location.Keys))
	for i, k := range res.Location.Keys {
		entries[i] = database.Entry{
			RunID:      res.RunID,
			Instrument: k.Instrument(),
			AsOf:       k.Date(),
			Target:     target,
			URI:        res.Location.URI(k),
			Bytes:      sizes[i],
		}
	}

	if err := o.catalog.Record(ctx, entries); err != nil {
		logger.Warn("catalog update failed", "error", err)
	}
}

func (o *Orchestrator) step(n int, message string) {
	if o.progress != nil {
		o.progress.Step(n, stages, message)
	}
}
