package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/ttt"
)

// Mode selects how a store is opened.
type Mode int

const (
	// ModeRead opens a store for queries. Any number of readers may coexist
	// with one writer.
	ModeRead Mode = iota

	// ModeReadWrite opens a store for building. Only one writer may hold a
	// store directory at a time.
	ModeReadWrite
)

func (m Mode) String() string {
	if m == ModeReadWrite {
		return "rw"
	}
	return "r"
}

// State is the lifecycle state of a store handle.
type State int

const (
	// StateCreated: files exist but travel-time tables have not been made.
	StateCreated State = iota

	// StateEditable: tables exist and records can be built and read.
	StateEditable

	// StateClosed: the handle has been closed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateEditable:
		return "editable"
	default:
		return "closed"
	}
}

// Store is an open handle on a store directory.
type Store struct {
	dir  string
	mode Mode
	cfg  *config.Config

	mu        sync.RWMutex
	index     *os.File
	traces    *os.File
	tracesEnd int64
	lock      *dirLock
	phases    map[string]*ttt.Table
	closed    bool
}

// CreateEditables lays out a new empty store in dir: configuration, an index
// with every record unbuilt, an empty traces file and the backend extras.
// It refuses a directory that already holds a store.
func CreateEditables(dir string, cfg *config.Config, extras map[string][]byte) error {
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(nil); err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
		return fmt.Errorf("create store %s: %w", dir, ErrExists)
	}

	var dirs []string
	for _, d := range []string{dir, filepath.Join(dir, phasesDir), filepath.Join(dir, extraDir)} {
		if _, err := os.Stat(d); os.IsNotExist(err) {
			dirs = append(dirs, d)
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create store: %w", err)
		}
	}

	// The configuration is written last: its presence marks a complete
	// layout. Anything written before a failure is removed again.
	var created []string
	fail := func(err error) error {
		for i := len(created) - 1; i >= 0; i-- {
			os.Remove(created[i])
		}
		for i := len(dirs) - 1; i >= 0; i-- {
			os.Remove(dirs[i])
		}
		return fmt.Errorf("create store: %w", err)
	}

	indexPath := filepath.Join(dir, indexFile)
	if err := createIndex(indexPath, cfg); err != nil {
		return fail(err)
	}
	created = append(created, indexPath)

	tracesPath := filepath.Join(dir, tracesFile)
	if err := writeFileAtomic(tracesPath, tracesHeader()); err != nil {
		return fail(err)
	}
	created = append(created, tracesPath)

	for id, data := range extras {
		if err := writeExtra(dir, id, data); err != nil {
			return fail(err)
		}
		path, _ := extraPath(dir, id)
		created = append(created, path)
	}

	if err := cfg.Save(filepath.Join(dir, configFile)); err != nil {
		return fail(err)
	}

	slog.Info("created store",
		"dir", dir,
		"id", cfg.ID,
		"records", cfg.NRecords(),
		"digest", cfg.DigestHex(),
	)
	return nil
}

// createIndex writes the header and sizes the file so that every entry
// reads as unbuilt.
func createIndex(path string, cfg *config.Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer f.Close()

	h := indexHeader{
		Version:  formatVersion,
		NRecords: uint32(cfg.NRecords()),
		Digest:   cfg.Digest(),
		Deltat:   cfg.Deltat(),
	}
	if _, err := f.Write(h.encode()); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	if err := f.Truncate(indexHeaderSize + int64(cfg.NRecords())*entrySize); err != nil {
		return fmt.Errorf("size index: %w", err)
	}
	return f.Sync()
}

// Open opens the store in dir. A ModeReadWrite handle takes the directory
// lock and fails with a LockError if another writer holds it.
//
// The index header is checked against the configuration: bad magic, a
// digest mismatch or a truncated index yield a CorruptionError.
func Open(dir string, mode Mode) (*Store, error) {
	cfg, err := config.Load(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{dir: dir, mode: mode, cfg: cfg}

	if mode == ModeReadWrite {
		lock, err := acquireLock(dir)
		if err != nil {
			return nil, err
		}
		s.lock = lock
	}

	if err := s.openFiles(); err != nil {
		s.closeFiles()
		return nil, err
	}

	phases, err := s.loadPhases()
	if err != nil {
		s.closeFiles()
		return nil, err
	}
	s.phases = phases

	slog.Debug("opened store", "dir", dir, "mode", mode.String(), "phases", len(phases))
	return s, nil
}

func (s *Store) openFiles() error {
	flag := os.O_RDONLY
	if s.mode == ModeReadWrite {
		flag = os.O_RDWR
	}

	indexPath := filepath.Join(s.dir, indexFile)
	index, err := os.OpenFile(indexPath, flag, 0)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.index = index

	buf := make([]byte, indexHeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(index, 0, indexHeaderSize), buf); err != nil {
		return corrupt(indexPath, "truncated header")
	}
	h, err := decodeIndexHeader(indexPath, buf)
	if err != nil {
		return err
	}
	if h.Digest != s.cfg.Digest() {
		return corrupt(indexPath, "configuration digest mismatch")
	}
	if int(h.NRecords) != s.cfg.NRecords() {
		return corrupt(indexPath, "header holds %d records, configuration needs %d", h.NRecords, s.cfg.NRecords())
	}
	info, err := index.Stat()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if want := indexHeaderSize + int64(h.NRecords)*entrySize; info.Size() != want {
		return corrupt(indexPath, "size %d, expected %d", info.Size(), want)
	}

	tracesPath := filepath.Join(s.dir, tracesFile)
	traces, err := os.OpenFile(tracesPath, flag, 0)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.traces = traces

	magic := make([]byte, tracesHeaderSize)
	if _, err := traces.ReadAt(magic, 0); err != nil || string(magic[:8]) != tracesMagic {
		return corrupt(tracesPath, "bad magic")
	}
	tinfo, err := traces.Stat()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.tracesEnd = tinfo.Size()
	return nil
}

func (s *Store) closeFiles() error {
	var errs []error
	if s.index != nil {
		errs = append(errs, s.index.Close())
		s.index = nil
	}
	if s.traces != nil {
		errs = append(errs, s.traces.Close())
		s.traces = nil
	}
	if s.lock != nil {
		errs = append(errs, s.lock.release())
		s.lock = nil
	}
	return errors.Join(errs...)
}

// Close releases the files and the writer lock. Calling Close more than
// once is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeFiles()
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Mode returns the mode the handle was opened with.
func (s *Store) Mode() Mode { return s.mode }

// Config returns the store configuration. Callers must not modify it.
func (s *Store) Config() *config.Config { return s.cfg }

// Path joins elem onto the store directory, for backend-owned files.
func (s *Store) Path(elem ...string) string {
	return filepath.Join(append([]string{s.dir}, elem...)...)
}

// JournalPath returns the location of the build journal.
func (s *Store) JournalPath() string { return filepath.Join(s.dir, journalFile) }

// State returns the lifecycle state of the handle.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.closed:
		return StateClosed
	case len(s.phases) == 0:
		return StateCreated
	default:
		return StateEditable
	}
}

func (s *Store) checkWritable() error {
	if s.closed {
		return ErrClosed
	}
	if s.mode != ModeReadWrite {
		return ErrReadOnly
	}
	return nil
}

// writeFileAtomic replaces path with data via a temporary file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
