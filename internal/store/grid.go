package store

import (
	"fmt"
	"log/slog"
)

func (s *Store) checkNode(iz, ix, ic int) error {
	if iz < 0 || iz >= s.cfg.NSourceDepths() ||
		ix < 0 || ix >= s.cfg.NDistances() ||
		ic < 0 || ic >= s.cfg.NComponents {
		return fmt.Errorf("node (iz=%d, ix=%d, ic=%d) outside the grid", iz, ix, ic)
	}
	return nil
}

func entryOffset(irecord int) int64 {
	return indexHeaderSize + int64(irecord)*entrySize
}

// Get returns the record at (iz, ix, ic). The index entry is re-read on
// every call, so records committed by a concurrent build become visible.
func (s *Store) Get(iz, ix, ic int) (Record, error) {
	if err := s.checkNode(iz, ix, ic); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, ErrClosed
	}

	buf := make([]byte, entrySize)
	if _, err := s.index.ReadAt(buf, entryOffset(s.cfg.RecordIndex(iz, ix, ic))); err != nil {
		return Record{}, corrupt(s.index.Name(), "read entry: %v", err)
	}
	e := decodeEntry(buf)
	if e.NSamples < 0 {
		return Record{}, corrupt(s.index.Name(), "negative sample count at (iz=%d, ix=%d, ic=%d)", iz, ix, ic)
	}

	switch e.Offset {
	case offsetMissing:
		return Record{}, &NotBuiltError{IZ: iz, IX: ix, IC: ic}
	case offsetZero:
		return Record{Itmin: int(e.Itmin), Data: make([]float32, e.NSamples)}, nil
	case offsetShort:
		switch e.NSamples {
		case 1:
			return Record{Itmin: int(e.Itmin), Data: []float32{e.Begin}}, nil
		case 2:
			return Record{Itmin: int(e.Itmin), Data: []float32{e.Begin, e.End}}, nil
		default:
			return Record{}, corrupt(s.index.Name(), "short record with %d samples", e.NSamples)
		}
	}

	if e.Offset < tracesHeaderSize {
		return Record{}, corrupt(s.traces.Name(), "record offset %d inside header", e.Offset)
	}
	data := make([]byte, 4*int(e.NSamples))
	n, err := s.traces.ReadAt(data, int64(e.Offset))
	if n < len(data) {
		return Record{}, corrupt(s.traces.Name(), "record data beyond end of file (offset %d, %d samples): %v", e.Offset, e.NSamples, err)
	}
	return Record{Itmin: int(e.Itmin), Data: decodeSamples(data)}, nil
}

// Built reports whether the record at (iz, ix, ic) exists.
func (s *Store) Built(iz, ix, ic int) (bool, error) {
	_, err := s.Get(iz, ix, ic)
	if err == nil {
		return true, nil
	}
	if IsNotBuilt(err) {
		return false, nil
	}
	return false, err
}

// readBlock returns the raw index entries of one source-depth partition.
func (s *Store) readBlock(iz int) ([]byte, error) {
	n := s.cfg.NDistances() * s.cfg.NComponents
	block := make([]byte, n*entrySize)
	if _, err := s.index.ReadAt(block, entryOffset(s.cfg.RecordIndex(iz, 0, 0))); err != nil {
		return nil, corrupt(s.index.Name(), "read partition %d: %v", iz, err)
	}
	return block, nil
}

// PartitionComplete reports whether every record of source depth iz is built.
func (s *Store) PartitionComplete(iz int) (bool, error) {
	if iz < 0 || iz >= s.cfg.NSourceDepths() {
		return false, fmt.Errorf("partition %d outside the grid", iz)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	block, err := s.readBlock(iz)
	if err != nil {
		return false, err
	}
	for i := 0; i < len(block); i += entrySize {
		if !decodeEntry(block[i : i+entrySize]).built() {
			return false, nil
		}
	}
	return true, nil
}

// WritePartition commits records of source depth iz and returns how many
// were written. Already built records are kept unless force is set.
//
// Sample data is appended and synced before the partition's index block is
// rewritten in a single write.
func (s *Store) WritePartition(iz int, records []NodeRecord, force bool) (int, error) {
	if iz < 0 || iz >= s.cfg.NSourceDepths() {
		return 0, fmt.Errorf("partition %d outside the grid", iz)
	}
	nc := s.cfg.NComponents
	seen := make(map[Node]bool, len(records))
	for _, r := range records {
		if err := s.checkNode(iz, r.IX, r.IC); err != nil {
			return 0, err
		}
		if seen[r.Node] {
			return 0, fmt.Errorf("duplicate record (ix=%d, ic=%d) in partition %d", r.IX, r.IC, iz)
		}
		seen[r.Node] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return 0, err
	}

	block, err := s.readBlock(iz)
	if err != nil {
		return 0, err
	}

	var pending []byte
	written := 0
	for _, r := range records {
		slot := block[(r.IX*nc+r.IC)*entrySize:][:entrySize]
		if decodeEntry(slot).built() && !force {
			continue
		}
		e, inline := classify(r.Record)
		if !inline {
			e.Offset = uint64(s.tracesEnd) + uint64(len(pending))
			pending = append(pending, encodeSamples(r.Record.Data)...)
		}
		e.encode(slot)
		written++
	}
	if written == 0 {
		return 0, nil
	}

	if len(pending) > 0 {
		if _, err := s.traces.WriteAt(pending, s.tracesEnd); err != nil {
			return 0, fmt.Errorf("append traces: %w", err)
		}
		if err := s.traces.Sync(); err != nil {
			return 0, fmt.Errorf("sync traces: %w", err)
		}
		s.tracesEnd += int64(len(pending))
	}

	if _, err := s.index.WriteAt(block, entryOffset(s.cfg.RecordIndex(iz, 0, 0))); err != nil {
		return 0, fmt.Errorf("write index: %w", err)
	}
	if err := s.index.Sync(); err != nil {
		return 0, fmt.Errorf("sync index: %w", err)
	}

	slog.Debug("committed partition",
		"iz", iz,
		"depth", s.cfg.SourceDepth(iz),
		"written", written,
		"bytes", len(pending),
	)
	return written, nil
}

// PartitionStats counts record kinds within one source depth.
type PartitionStats struct {
	IZ      int     `json:"iz"`
	Depth   float64 `json:"depth"`
	Missing int     `json:"missing"`
	Zero    int     `json:"zero"`
	Short   int     `json:"short"`
	Data    int     `json:"data"`
}

// Built returns the number of built records.
func (p PartitionStats) Built() int { return p.Zero + p.Short + p.Data }

// Stats summarises the build state of a store.
type Stats struct {
	ID          string           `json:"id"`
	State       string           `json:"state"`
	Records     int              `json:"records"`
	Built       int              `json:"built"`
	TracesBytes int64            `json:"traces_bytes"`
	Phases      []string         `json:"phases"`
	Partitions  []PartitionStats `json:"partitions"`
}

// Complete reports whether every record is built.
func (st Stats) Complete() bool { return st.Built == st.Records }

// Stats scans the index and reports per-partition record counts.
func (s *Store) Stats() (Stats, error) {
	state := s.State()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, ErrClosed
	}

	st := Stats{
		ID:          s.cfg.ID,
		State:       state.String(),
		Records:     s.cfg.NRecords(),
		TracesBytes: s.tracesEnd,
		Phases:      s.phaseIDs(),
	}
	if info, err := s.traces.Stat(); err == nil {
		st.TracesBytes = info.Size()
	}

	for iz := 0; iz < s.cfg.NSourceDepths(); iz++ {
		block, err := s.readBlock(iz)
		if err != nil {
			return Stats{}, err
		}
		ps := PartitionStats{IZ: iz, Depth: s.cfg.SourceDepth(iz)}
		for i := 0; i < len(block); i += entrySize {
			switch decodeEntry(block[i : i+entrySize]).Offset {
			case offsetMissing:
				ps.Missing++
			case offsetZero:
				ps.Zero++
			case offsetShort:
				ps.Short++
			default:
				ps.Data++
			}
		}
		st.Built += ps.Built()
		st.Partitions = append(st.Partitions, ps)
	}
	return st, nil
}
