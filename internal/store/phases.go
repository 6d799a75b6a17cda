package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/ttt"
)

func (s *Store) loadPhases() (map[string]*ttt.Table, error) {
	dir := filepath.Join(s.dir, phasesDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*ttt.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read phases: %w", err)
	}

	phases := make(map[string]*ttt.Table)
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, phaseSuffix) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read phase file: %w", err)
		}
		var t ttt.Table
		if err := t.UnmarshalBinary(data); err != nil {
			return nil, corrupt(path, "%v", err)
		}
		id := strings.TrimSuffix(name, phaseSuffix)
		if t.PhaseID != id {
			return nil, corrupt(path, "holds phase %q", t.PhaseID)
		}
		if t.NDepths != s.cfg.NSourceDepths() || t.NDists != s.cfg.NDistances() {
			return nil, corrupt(path, "table is %dx%d, grid is %dx%d",
				t.NDepths, t.NDists, s.cfg.NSourceDepths(), s.cfg.NDistances())
		}
		phases[id] = &t
	}
	return phases, nil
}

// MakeTTT builds the travel-time table of every declared phase and writes
// it to phases/<id>.phase. Requires a read-write handle.
func (s *Store) MakeTTT() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}

	tables, err := ttt.Build(s.cfg)
	if err != nil {
		return fmt.Errorf("make travel-time tables: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(s.dir, phasesDir), 0o755); err != nil {
		return fmt.Errorf("make travel-time tables: %w", err)
	}
	for _, id := range sortedIDs(tables) {
		data, err := tables[id].MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode phase %s: %w", id, err)
		}
		if err := writeFileAtomic(filepath.Join(s.dir, phasesDir, id+phaseSuffix), data); err != nil {
			return fmt.Errorf("write phase %s: %w", id, err)
		}
	}
	s.phases = tables

	slog.Info("built travel-time tables", "dir", s.dir, "phases", len(tables))
	return nil
}

// Phase returns the travel-time table for id.
func (s *Store) Phase(id string) (*ttt.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.phases[id]
	return t, ok
}

// PhaseIDs returns the ids of the loaded tables in sorted order.
func (s *Store) PhaseIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phaseIDs()
}

func (s *Store) phaseIDs() []string {
	return sortedIDs(s.phases)
}

func sortedIDs(m map[string]*ttt.Table) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TimeAt evaluates a timing at grid node (iz, ix).
func (s *Store) TimeAt(t config.Timing, iz, ix int) (ttt.Arrival, error) {
	if t.IsConstant() {
		return ttt.Arrival{T: t.Offset, Valid: true}, nil
	}
	tbl, ok := s.Phase(t.PhaseID)
	if !ok {
		return ttt.NoArrival, fmt.Errorf("phase %q is not tabulated", t.PhaseID)
	}
	return tbl.At(iz, ix).Add(t.Offset), nil
}

// Time evaluates a timing at an arbitrary source depth and distance by
// interpolating the phase table.
func (s *Store) Time(t config.Timing, depth, distance float64) (ttt.Arrival, error) {
	if t.IsConstant() {
		return ttt.Arrival{T: t.Offset, Valid: true}, nil
	}
	tbl, ok := s.Phase(t.PhaseID)
	if !ok {
		return ttt.NoArrival, fmt.Errorf("phase %q is not tabulated", t.PhaseID)
	}
	return tbl.Interpolate(depth, distance).Add(t.Offset), nil
}
