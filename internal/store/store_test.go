package store

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/testutil"
)

// createTestStore lays out a fresh store for the small test grid.
func createTestStore(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "store")
	extras := map[string][]byte{"ahfull": []byte("cut: [begin-1, end+1]\n")}
	require.NoError(t, CreateEditables(dir, testutil.SmallConfig("ahfull"), extras))
	return dir
}

func openTestStore(t *testing.T, dir string, mode Mode) *Store {
	t.Helper()
	s, err := Open(dir, mode)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateEditables_Layout(t *testing.T) {
	dir := createTestStore(t)

	for _, name := range []string{configFile, indexFile, tracesFile, phasesDir, filepath.Join(extraDir, "ahfull")} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	s := openTestStore(t, dir, ModeRead)
	assert.Equal(t, StateCreated, s.State())

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3*5*10, st.Records)
	assert.Equal(t, 0, st.Built)
	assert.False(t, st.Complete())
	require.Len(t, st.Partitions, 3)
	assert.Equal(t, 50, st.Partitions[0].Missing)
	assert.Equal(t, int64(tracesHeaderSize), st.TracesBytes)
}

func TestCreateEditables_RefusesExisting(t *testing.T) {
	dir := createTestStore(t)

	err := CreateEditables(dir, testutil.SmallConfig("ahfull"), nil)
	assert.ErrorIs(t, err, ErrExists)
}

func TestCreateEditables_InvalidConfig(t *testing.T) {
	cfg := testutil.SmallConfig("ahfull")
	cfg.SampleRate = 0

	err := CreateEditables(filepath.Join(t.TempDir(), "store"), cfg, nil)
	assert.True(t, config.IsValidationError(err))
}

func TestCreateEditables_InvalidExtraID(t *testing.T) {
	extras := map[string][]byte{"../escape": []byte("x")}
	err := CreateEditables(filepath.Join(t.TempDir(), "store"), testutil.SmallConfig("ahfull"), extras)
	assert.Error(t, err)
}

func TestCreateEditables_FailureLeavesNoPartialStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	extras := map[string][]byte{"ahfull": []byte("cut: [begin-1, end+1]\n"), "../escape": []byte("x")}

	err := CreateEditables(dir, testutil.SmallConfig("ahfull"), extras)
	require.Error(t, err)
	for _, name := range []string{configFile, indexFile, tracesFile, filepath.Join(extraDir, "ahfull")} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s left behind", name)
	}

	// A retry with valid extras succeeds and yields an openable store.
	require.NoError(t, CreateEditables(dir, testutil.SmallConfig("ahfull"), nil))
	s := openTestStore(t, dir, ModeRead)
	assert.Equal(t, StateCreated, s.State())
}

func TestOpen_SecondWriterIsLocked(t *testing.T) {
	dir := createTestStore(t)

	w1, err := Open(dir, ModeReadWrite)
	require.NoError(t, err)

	_, err = Open(dir, ModeReadWrite)
	require.Error(t, err)
	assert.True(t, IsLockError(err))

	// Readers are not blocked by the writer.
	r := openTestStore(t, dir, ModeRead)
	assert.Equal(t, ModeRead, r.Mode())

	require.NoError(t, w1.Close())

	w2, err := Open(dir, ModeReadWrite)
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestOpen_DigestMismatch(t *testing.T) {
	dir := createTestStore(t)

	cfg, err := config.Load(filepath.Join(dir, configFile))
	require.NoError(t, err)
	cfg.SampleRate = 20
	require.NoError(t, cfg.Save(filepath.Join(dir, configFile)))

	_, err = Open(dir, ModeRead)
	require.Error(t, err)
	assert.True(t, IsCorruptionError(err))
	assert.Contains(t, err.Error(), "digest mismatch")
}

func TestOpen_BadMagic(t *testing.T) {
	dir := createTestStore(t)

	f, err := os.OpenFile(filepath.Join(dir, indexFile), os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("NOTINDEX"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(dir, ModeRead)
	assert.True(t, IsCorruptionError(err))
}

func TestOpen_TruncatedIndex(t *testing.T) {
	dir := createTestStore(t)

	path := filepath.Join(dir, indexFile)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-1))

	_, err = Open(dir, ModeRead)
	assert.True(t, IsCorruptionError(err))
}

func TestOpen_MissingStore(t *testing.T) {
	_, err := Open(t.TempDir(), ModeRead)
	assert.Error(t, err)
	assert.False(t, IsCorruptionError(err))
}

func TestGet_NotBuilt(t *testing.T) {
	s := openTestStore(t, createTestStore(t), ModeRead)

	_, err := s.Get(1, 2, 3)
	require.Error(t, err)
	assert.True(t, IsNotBuilt(err))

	var nb *NotBuiltError
	require.ErrorAs(t, err, &nb)
	assert.Equal(t, NotBuiltError{IZ: 1, IX: 2, IC: 3}, *nb)

	built, err := s.Built(1, 2, 3)
	require.NoError(t, err)
	assert.False(t, built)
}

func TestGet_OutsideGrid(t *testing.T) {
	s := openTestStore(t, createTestStore(t), ModeRead)

	for _, n := range [][3]int{{-1, 0, 0}, {3, 0, 0}, {0, 5, 0}, {0, 0, 10}} {
		_, err := s.Get(n[0], n[1], n[2])
		assert.Error(t, err)
		assert.False(t, IsNotBuilt(err))
	}
}

func TestWritePartition_RecordKinds(t *testing.T) {
	s := openTestStore(t, createTestStore(t), ModeReadWrite)

	records := []NodeRecord{
		{Node: Node{IX: 0, IC: 0}, Record: Record{Itmin: 12, Data: []float32{0.5, 1.25, -2, 4, 0.25}}},
		{Node: Node{IX: 0, IC: 1}, Record: Record{Itmin: 3, Data: []float32{0, 0, 0}}},
		{Node: Node{IX: 1, IC: 0}, Record: Record{Itmin: -4, Data: []float32{7.5}}},
		{Node: Node{IX: 1, IC: 1}, Record: Record{Itmin: 9, Data: []float32{1, -1}}},
	}
	n, err := s.WritePartition(2, records, false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for _, want := range records {
		got, err := s.Get(2, want.IX, want.IC)
		require.NoError(t, err)
		assert.Equal(t, want.Record, got, "node %+v", want.Node)
	}

	st, err := s.Stats()
	require.NoError(t, err)
	p := st.Partitions[2]
	assert.Equal(t, 1, p.Data)
	assert.Equal(t, 1, p.Zero)
	assert.Equal(t, 2, p.Short)
	assert.Equal(t, 46, p.Missing)
	assert.Equal(t, int64(tracesHeaderSize+5*4), st.TracesBytes)
}

func TestWritePartition_ImmutableUnlessForced(t *testing.T) {
	s := openTestStore(t, createTestStore(t), ModeReadWrite)

	first := []NodeRecord{{Node: Node{IX: 3, IC: 4}, Record: Record{Itmin: 1, Data: []float32{1, 2, 3}}}}
	second := []NodeRecord{{Node: Node{IX: 3, IC: 4}, Record: Record{Itmin: 2, Data: []float32{4, 5, 6, 7}}}}

	_, err := s.WritePartition(0, first, false)
	require.NoError(t, err)

	n, err := s.WritePartition(0, second, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	got, err := s.Get(0, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, first[0].Record, got)

	n, err = s.WritePartition(0, second, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err = s.Get(0, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, second[0].Record, got)
}

func TestWritePartition_Rejects(t *testing.T) {
	dir := createTestStore(t)
	rec := Record{Data: []float32{1, 2, 3}}

	r := openTestStore(t, dir, ModeRead)
	_, err := r.WritePartition(0, []NodeRecord{{Node: Node{}, Record: rec}}, false)
	assert.ErrorIs(t, err, ErrReadOnly)

	w := openTestStore(t, dir, ModeReadWrite)
	_, err = w.WritePartition(0, []NodeRecord{{Node: Node{}, Record: rec}, {Node: Node{}, Record: rec}}, false)
	assert.ErrorContains(t, err, "duplicate")

	_, err = w.WritePartition(5, nil, false)
	assert.Error(t, err)

	_, err = w.WritePartition(0, []NodeRecord{{Node: Node{IX: 9}, Record: rec}}, false)
	assert.Error(t, err)
}

func TestGet_SeesConcurrentCommit(t *testing.T) {
	dir := createTestStore(t)
	reader := openTestStore(t, dir, ModeRead)
	writer := openTestStore(t, dir, ModeReadWrite)

	_, err := reader.Get(1, 1, 1)
	require.True(t, IsNotBuilt(err))

	rec := Record{Itmin: 5, Data: []float32{3, 2, 1}}
	_, err = writer.WritePartition(1, []NodeRecord{{Node: Node{IX: 1, IC: 1}, Record: rec}}, false)
	require.NoError(t, err)

	got, err := reader.Get(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestGet_ConcurrentReads(t *testing.T) {
	dir := createTestStore(t)
	w := openTestStore(t, dir, ModeReadWrite)

	var records []NodeRecord
	for ic := 0; ic < 10; ic++ {
		records = append(records, NodeRecord{Node: Node{IX: 2, IC: ic}, Record: Record{Itmin: ic, Data: []float32{float32(ic), 1, 2}}})
	}
	_, err := w.WritePartition(0, records, false)
	require.NoError(t, err)

	r := openTestStore(t, dir, ModeRead)
	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ic := 0; ic < 10; ic++ {
				rec, err := r.Get(0, 2, ic)
				if err != nil {
					errs <- err
					return
				}
				if rec.Itmin != ic {
					errs <- assert.AnError
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestGet_DataBeyondEndOfTraces(t *testing.T) {
	dir := createTestStore(t)
	w := openTestStore(t, dir, ModeReadWrite)

	_, err := w.WritePartition(0, []NodeRecord{{Node: Node{}, Record: Record{Data: []float32{1, 2, 3, 4}}}}, false)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(filepath.Join(dir, tracesFile), tracesHeaderSize+4))

	r := openTestStore(t, dir, ModeRead)
	_, err = r.Get(0, 0, 0)
	require.Error(t, err)
	assert.True(t, IsCorruptionError(err))
}

func TestPartitionComplete(t *testing.T) {
	s := openTestStore(t, createTestStore(t), ModeReadWrite)

	var records []NodeRecord
	for ix := 0; ix < 5; ix++ {
		for ic := 0; ic < 10; ic++ {
			records = append(records, NodeRecord{Node: Node{IX: ix, IC: ic}, Record: Record{Data: []float32{0}}})
		}
	}

	done, err := s.PartitionComplete(1)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = s.WritePartition(1, records[:len(records)-1], false)
	require.NoError(t, err)
	done, err = s.PartitionComplete(1)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = s.WritePartition(1, records, false)
	require.NoError(t, err)
	done, err = s.PartitionComplete(1)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = s.PartitionComplete(0)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMakeTTT(t *testing.T) {
	dir := createTestStore(t)

	r := openTestStore(t, dir, ModeRead)
	assert.ErrorIs(t, r.MakeTTT(), ErrReadOnly)

	w := openTestStore(t, dir, ModeReadWrite)
	require.NoError(t, w.MakeTTT())
	assert.Equal(t, StateEditable, w.State())
	assert.Equal(t, []string{"begin", "end"}, w.PhaseIDs())

	_, err := os.Stat(filepath.Join(dir, phasesDir, "begin"+phaseSuffix))
	require.NoError(t, err)

	reopened := openTestStore(t, dir, ModeRead)
	tbl, ok := reopened.Phase("begin")
	require.True(t, ok)
	orig, _ := w.Phase("begin")
	assert.True(t, tbl.Equal(orig))

	cfg := reopened.Config()
	a, err := reopened.TimeAt(config.MustParseTiming("begin+1"), 0, 0)
	require.NoError(t, err)
	require.True(t, a.Valid)
	direct := math.Hypot(cfg.SourceDepth(0), cfg.Distance(0)) / 6000
	assert.InDelta(t, direct+1, a.T, 0.02)

	a, err = reopened.Time(config.MustParseTiming("end"), cfg.SourceDepth(1), 12500)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, a.T, 1e-9)

	a, err = reopened.TimeAt(config.MustParseTiming("7"), 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 7.0, a.T)

	_, err = reopened.TimeAt(config.MustParseTiming("nope"), 0, 0)
	assert.Error(t, err)
}

func TestOpen_CorruptPhaseFile(t *testing.T) {
	dir := createTestStore(t)
	testutil.WriteFile(t, filepath.Join(dir, phasesDir), "begin"+phaseSuffix, []byte("garbage"))

	_, err := Open(dir, ModeRead)
	require.Error(t, err)
	assert.True(t, IsCorruptionError(err))
}

func TestExtra(t *testing.T) {
	dir := createTestStore(t)

	r := openTestStore(t, dir, ModeRead)
	data, err := r.Extra("ahfull")
	require.NoError(t, err)
	assert.Equal(t, "cut: [begin-1, end+1]\n", string(data))

	_, err = r.Extra("qseis")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorIs(t, r.SetExtra("qseis", []byte("x")), ErrReadOnly)

	w := openTestStore(t, dir, ModeReadWrite)
	require.NoError(t, w.SetExtra("qseis", []byte("qseis_version: 6.0\n")))
	data, err = r.Extra("qseis")
	require.NoError(t, err)
	assert.Equal(t, "qseis_version: 6.0\n", string(data))
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open(createTestStore(t), ModeReadWrite)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())

	_, err = s.Get(0, 0, 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.MakeTTT(), ErrClosed)
}

func TestRecord_Accessors(t *testing.T) {
	r := NewRecord(10, []float64{1, 2, 3})
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 12, r.Itmax())
	assert.Equal(t, float32(1), r.At(0))
	assert.Equal(t, float32(2), r.At(11))
	assert.Equal(t, float32(3), r.At(100))
	assert.False(t, r.IsZero())
	assert.Equal(t, float32(0), Record{}.At(3))
}
