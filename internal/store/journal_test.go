package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), journalFile)
	j, err := OpenJournal(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

// verifyPragma checks that a pragma is set to the expected value.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func TestOpenJournal_Pragmas(t *testing.T) {
	j, _ := createTestJournal(t)

	assert.NoError(t, j.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, j.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, j.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, j.verifyPragma("user_version", fmt.Sprint(currentJournalVersion)))
}

func TestOpenJournal_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), journalFile)
	for i := 0; i < 3; i++ {
		j, err := OpenJournal(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, j.Close())
	}
}

func TestJournal_BuildLifecycle(t *testing.T) {
	ctx := context.Background()
	j, _ := createTestJournal(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b, err := j.BeginBuild(ctx, BuildRecord{
		ID:           "run-1",
		StartedAt:    start,
		Workers:      4,
		Force:        true,
		ConfigDigest: "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, BuildRunning, b.Status)

	j1, err := j.RecordJob(ctx, JobRecord{BuildID: "run-1", IZ: 0, SourceDepth: 5000, Status: JobBuilt, Duration: 1500 * time.Millisecond, Records: 50})
	require.NoError(t, err)
	j2, err := j.RecordJob(ctx, JobRecord{BuildID: "run-1", IZ: 1, SourceDepth: 6000, Status: JobFailed, Error: "exit status 1"})
	require.NoError(t, err)
	assert.Greater(t, j1.Seq, b.Seq)
	assert.Greater(t, j2.Seq, j1.Seq)

	// A second outcome for the same partition is ignored.
	_, err = j.RecordJob(ctx, JobRecord{BuildID: "run-1", IZ: 1, SourceDepth: 6000, Status: JobBuilt})
	require.NoError(t, err)

	require.NoError(t, j.FinishBuild(ctx, "run-1", BuildFailed, start.Add(time.Minute)))

	jobs, err := j.Jobs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, JobBuilt, jobs[0].Status)
	assert.Equal(t, 1500*time.Millisecond, jobs[0].Duration)
	assert.Equal(t, 50, jobs[0].Records)
	assert.Equal(t, JobFailed, jobs[1].Status)
	assert.Equal(t, "exit status 1", jobs[1].Error)

	latest, err := j.LatestBuild(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-1", latest.ID)
	assert.Equal(t, BuildFailed, latest.Status)
	assert.True(t, latest.Force)
	assert.Equal(t, 4, latest.Workers)
	assert.True(t, start.Equal(latest.StartedAt))
	require.NotNil(t, latest.FinishedAt)
	assert.True(t, start.Add(time.Minute).Equal(*latest.FinishedAt))
}

func TestJournal_EmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	j, _ := createTestJournal(t)

	latest, err := j.LatestBuild(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	builds, err := j.Builds(ctx)
	require.NoError(t, err)
	assert.Empty(t, builds)

	assert.Error(t, j.FinishBuild(ctx, "missing", BuildSucceeded, time.Now()))

	// Jobs must reference a known build.
	_, err = j.RecordJob(ctx, JobRecord{BuildID: "missing", IZ: 0, Status: JobBuilt})
	assert.Error(t, err)
}

func TestJournal_ResumesSequence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), journalFile)

	j, err := OpenJournal(path)
	require.NoError(t, err)
	first, err := j.BeginBuild(ctx, BuildRecord{ID: "a", StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()
	second, err := j.BeginBuild(ctx, BuildRecord{ID: "b", StartedAt: time.Now()})
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	builds, err := j.Builds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, "a", builds[0].ID)
	assert.Equal(t, "b", builds[1].ID)
}

func TestSeqClock(t *testing.T) {
	c := NewSeqClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(c.Next(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(92), c.Current())
}
