// Package jsonfile keeps a keyed set of records in a single pretty-printed
// JSON object on disk. The whole document is held in memory, rewritten on
// every mutation and reloaded when another process replaced the file.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/frahmantamala/employee-onboarding/internal/storage"
)

var (
	ErrIO    = storage.ErrIO
	ErrParse = storage.ErrParse
)

// Collection serializes every read and read-modify-write cycle on one file.
type Collection[T any] struct {
	mu      sync.Mutex
	path    string
	records map[string]T
	seen    os.FileInfo
	logger  *slog.Logger
}

// Open creates the parent directory and an empty file when missing, then
// loads the document. A zero-length or whitespace-only file holds no records.
func Open[T any](path string, logger *slog.Logger) (*Collection[T], error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collection[T]{
		path:   path,
		logger: logger.With("collection", filepath.Base(path)),
	}

	if err := ensureFile(path); err != nil {
		return nil, err
	}

	if err := c.reload(); err != nil {
		return nil, err
	}

	c.logger.Info("collection loaded", "path", path, "records", len(c.records))
	return c, nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create directory for %s: %w", ErrIO, path, err)
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	return f.Close()
}

func (c *Collection[T]) load() (map[string]T, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, c.path, err)
	}

	records := make(map[string]T)
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, c.path, err)
	}
	if records == nil {
		// a literal "null" document
		records = make(map[string]T)
	}
	return records, nil
}

// reload reads the file and remembers which version of it was read.
func (c *Collection[T]) reload() error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, c.path, err)
	}
	records, err := c.load()
	if err != nil {
		return err
	}
	c.records = records
	c.seen = info
	return nil
}

// changedOnDisk reports whether the file is no longer the version last
// read or written here, e.g. after a CLI command rewrote it.
func (c *Collection[T]) changedOnDisk() bool {
	info, err := os.Stat(c.path)
	if err != nil || c.seen == nil {
		return false
	}
	return !os.SameFile(info, c.seen) || !info.ModTime().Equal(c.seen.ModTime()) || info.Size() != c.seen.Size()
}

// refresh picks up an external rewrite. Callers hold mu.
func (c *Collection[T]) refresh() error {
	if !c.changedOnDisk() {
		return nil
	}
	if err := c.reload(); err != nil {
		return err
	}
	c.logger.Info("collection reloaded after external change", "records", len(c.records))
	return nil
}

// syncForRead keeps serving the last good state when the new file cannot
// be read.
func (c *Collection[T]) syncForRead() {
	if err := c.refresh(); err != nil {
		c.logger.Warn("failed to reload collection", "error", err)
	}
}

func (c *Collection[T]) Path() string {
	return c.path
}

// Get returns a copy of the record stored under key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncForRead()

	rec, ok := c.records[key]
	return rec, ok
}

// Values returns every record ordered by key.
func (c *Collection[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncForRead()

	keys := make([]string, 0, len(c.records))
	for k := range c.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.records[k])
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncForRead()
	return len(c.records)
}

// Find returns the first record, in key order, for which match is true.
func (c *Collection[T]) Find(match func(T) bool) (T, bool) {
	for _, rec := range c.Values() {
		if match(rec) {
			return rec, true
		}
	}
	var zero T
	return zero, false
}

// Mutate runs fn against a working copy of the records while holding the
// lock. When fn reports a change the copy is written to disk and only then
// becomes the live state, so a failed write leaves memory and file in step.
// A file rewritten by another process is reloaded first; one that no longer
// parses is left alone and the mutation fails.
func (c *Collection[T]) Mutate(fn func(records map[string]T) (changed bool, err error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refresh(); err != nil {
		return err
	}

	working := maps.Clone(c.records)
	changed, err := fn(working)
	if err != nil || !changed {
		return err
	}

	if err := c.write(working); err != nil {
		return err
	}
	c.records = working
	return nil
}

// Reload discards the in-memory state and reads the file again.
func (c *Collection[T]) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload()
}

// Check reports whether the backing file is still reachable.
func (c *Collection[T]) Check() error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, c.path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrIO, c.path)
	}
	return nil
}

// write replaces the document through a temp file in the same directory
// followed by a rename.
func (c *Collection[T]) write(records map[string]T) (err error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrIO, c.path, err)
	}
	data = append(data, '\n')

	dir, base := filepath.Split(c.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %w", ErrIO, c.path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				c.logger.Warn("failed to remove temp file", "path", tmp.Name(), "error", rmErr)
			}
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrIO, tmp.Name(), err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", ErrIO, tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrIO, c.path, err)
	}
	if info, statErr := os.Stat(c.path); statErr == nil {
		c.seen = info
	}

	c.logger.Debug("collection written", "records", len(records), "bytes", len(data))
	return nil
}
