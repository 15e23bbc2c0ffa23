package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tickerlake/apperror"
	"tickerlake/ohlcv"
	"tickerlake/partition"
)

// LocalBackend stores artifacts as files beneath a root directory.
type LocalBackend struct {
	root   string
	logger *slog.Logger
}

// NewLocal roots a backend at dir. The directory is created on first write.
func NewLocal(dir string, logger *slog.Logger) (*LocalBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "resolve local root")
	}
	return &LocalBackend{root: root, logger: logger}, nil
}

func (l *LocalBackend) Target() Target { return Local }
func (l *LocalBackend) Root() string   { return l.root }

func (l *LocalBackend) path(key partition.Key) string {
	return filepath.Join(l.root, filepath.FromSlash(key.Path()))
}

// Write encodes t and replaces the file at key. The bytes go to a temporary file in the destination
// directory which is then renamed over the artifact, so readers never observe a partial file.
func (l *LocalBackend) Write(_ context.Context, key partition.Key, t *ohlcv.Table) (Location, error) {
	data, err := ohlcv.MarshalCSV(t)
	if err != nil {
		return Location{}, apperror.Wrap(apperror.StorageIOError, err, "encode "+key.String())
	}

	path := l.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Location{}, apperror.Wrap(apperror.StorageIOError, err, "create partition directory")
	}

	if err := writeFileAtomic(dir, path, data); err != nil {
		return Location{}, apperror.Wrap(apperror.StorageIOError, err, "write "+key.String())
	}

	l.logger.Debug("wrote local artifact", "path", path, "rows", t.Len(), "bytes", len(data))
	return Location{Target: Local, Root: l.root, Keys: []partition.Key{key}, Bytes: int64(len(data))}, nil
}

func writeFileAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*"+partition.Extension)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (l *LocalBackend) Exists(_ context.Context, key partition.Key) (bool, error) {
	info, err := os.Stat(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperror.Wrap(apperror.StorageIOError, err, "stat "+key.String())
	}
	return info.Mode().IsRegular(), nil
}

func (l *LocalBackend) Read(_ context.Context, key partition.Key) (*ohlcv.Table, error) {
	data, err := os.ReadFile(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperror.Newf(apperror.DataUnavailable, "no local artifact at %s", key)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "read "+key.String())
	}

	t, err := ohlcv.ReadCSV(bytes.NewReader(data), key.Instrument())
	if err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "decode "+key.String())
	}
	return t, nil
}

func (l *LocalBackend) List(_ context.Context, instrument string) ([]partition.Key, error) {
	prefix, err := partition.InstrumentPrefix(instrument)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(l.root, filepath.FromSlash(prefix)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "list "+prefix)
	}

	var keys []partition.Key
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		k, err := partition.Parse(prefix + e.Name())
		if err != nil {
			l.logger.Warn("skipping unrecognised file in partition directory", "file", e.Name())
			continue
		}
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys, nil
}

func sortKeys(keys []partition.Key) {
	slices.SortFunc(keys, func(a, b partition.Key) int {
		return a.Date().Compare(b.Date())
	})
}

func (l *LocalBackend) String() string {
	return fmt.Sprintf("local(%s)", l.root)
}
