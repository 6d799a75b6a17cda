// Package builder fills a store's grid by driving a modelling backend.
//
// The grid is partitioned by source depth. Each partition is one job:
// translate, run, parse, convert. Jobs are fed through a queue to a bounded
// pool of workers, and every result is committed by a single goroutine, so
// partitions are written one at a time and readers never observe a
// partially written partition.
//
// A job that fails is logged and journaled and the build continues. A
// backend that cannot be started aborts the whole build.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/lap"
	"github.com/roach88/gfstore/internal/store"
)

// Options tune a build.
type Options struct {
	// Workers bounds concurrent jobs. Values below 1 mean 1.
	Workers int

	// Force rebuilds partitions that are already complete.
	Force bool

	// Timeout bounds each external program invocation (0 for no limit).
	Timeout time.Duration

	// KeepTmp retains job work dirs; TmpDir is where they are created.
	KeepTmp bool
	TmpDir  string

	// Clock times jobs and stamps the journal. Nil means the wall clock.
	Clock lap.Clock

	// RunIDs generates build run ids. Nil means UUIDv7.
	RunIDs RunIDGenerator
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Clock == nil {
		o.Clock = lap.RealClock{}
	}
	if o.RunIDs == nil {
		o.RunIDs = UUIDv7Generator{}
	}
	return o
}

// outcome is what a worker hands to the commit step.
type outcome struct {
	part     backend.Partition
	records  []store.NodeRecord
	err      error
	duration time.Duration
}

// BuildDir opens the store in dir for writing, builds it and closes it.
func BuildDir(ctx context.Context, dir string, reg *backend.Registry, opts Options) (*Report, error) {
	st, err := store.Open(dir, store.ModeReadWrite)
	if err != nil {
		return nil, err
	}
	report, err := Build(ctx, st, reg, opts)
	if cerr := st.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close store: %w", cerr)
	}
	return report, err
}

// Build computes every missing partition of st, or every partition when
// opts.Force is set. Travel-time tables are made first if the store has
// none.
//
// The returned error is a *BuildFailedError when some jobs failed, wraps a
// backend.UnavailableError when the build was aborted, and wraps the
// context error when it was cancelled. The report is returned in all of
// these cases.
func Build(ctx context.Context, st *store.Store, reg *backend.Registry, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	cfg := st.Config()
	if st.Mode() != store.ModeReadWrite {
		return nil, fmt.Errorf("build %s: %w", st.Dir(), store.ErrReadOnly)
	}

	if st.State() == store.StateCreated {
		if err := st.MakeTTT(); err != nil {
			return nil, fmt.Errorf("build %s: %w", st.Dir(), err)
		}
	}

	family, extra, err := reg.LoadExtra(cfg, st)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", st.Dir(), err)
	}
	adapter, err := family.NewAdapter(cfg, extra, backend.Options{
		TmpDir:  opts.TmpDir,
		KeepTmp: opts.KeepTmp,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", st.Dir(), err)
	}

	journal, err := store.OpenJournal(st.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", st.Dir(), err)
	}
	defer journal.Close()

	watch := lap.New(opts.Clock)
	rec, err := journal.BeginBuild(ctx, store.BuildRecord{
		ID:           opts.RunIDs.Generate(),
		StartedAt:    opts.Clock.Now(),
		Workers:      opts.Workers,
		Force:        opts.Force,
		ConfigDigest: cfg.DigestHex(),
	})
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: rec.ID}

	slog.Info("build starting",
		"run", rec.ID,
		"store", cfg.ID,
		"backend", family.ID(),
		"partitions", cfg.NSourceDepths(),
		"workers", opts.Workers,
		"force", opts.Force,
	)

	b := &build{
		st:      st,
		adapter: adapter,
		cut:     newCutter(st, extra),
		env:     backend.Env{StoreDir: st.Dir(), Times: st},
		journal: journal,
		runID:   rec.ID,
		opts:    opts,
		report:  report,
	}

	queue := newJobQueue()
	for iz := 0; iz < cfg.NSourceDepths(); iz++ {
		part := backend.NewPartition(cfg, iz)
		if !opts.Force {
			complete, err := st.PartitionComplete(iz)
			if err != nil {
				return report, b.finish(ctx, store.BuildFailed, watch, err)
			}
			if complete {
				b.record(ctx, JobResult{IZ: iz, SourceDepth: part.SourceDepth, Status: store.JobSkipped})
				continue
			}
		}
		queue.Enqueue(job{Partition: part})
	}
	queue.Close()

	status, runErr := b.run(ctx, queue)
	report.Pending = len(queue.Drain())
	return report, b.finish(ctx, status, watch, runErr)
}

type build struct {
	st      *store.Store
	adapter backend.Adapter
	cut     cutter
	env     backend.Env
	journal *store.Journal
	runID   string
	opts    Options
	report  *Report

	// abort stops workers from taking further jobs.
	abort context.CancelFunc
}

// run starts the workers and commits their outcomes until the queue is
// drained, the build is aborted or ctx is cancelled.
func (b *build) run(ctx context.Context, queue *jobQueue) (store.BuildStatus, error) {
	workCtx, stop := context.WithCancel(ctx)
	defer stop()
	b.abort = stop

	outcomes := make(chan outcome)
	var wg sync.WaitGroup
	for w := 0; w < b.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.worker(workCtx, queue, outcomes)
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var abortErr error
	for o := range outcomes {
		res := b.commit(o)
		if backend.IsUnavailable(res.Err) && abortErr == nil {
			abortErr = res.Err
			slog.Error("backend unavailable, aborting build", "run", b.runID, "error", res.Err)
		}
		b.record(ctx, res)
	}

	switch {
	case abortErr != nil:
		return store.BuildAborted, fmt.Errorf("build aborted: %w", abortErr)
	case ctx.Err() != nil:
		return store.BuildCancelled, fmt.Errorf("build cancelled: %w", ctx.Err())
	case b.report.Failed > 0:
		return store.BuildFailed, &BuildFailedError{
			RunID:  b.runID,
			Failed: b.report.FailedJobs(),
			Total:  b.st.Config().NSourceDepths(),
		}
	}
	return store.BuildSucceeded, nil
}

// worker processes jobs until the queue is drained or ctx is done.
// Cancellation is observed between jobs only.
func (b *build) worker(ctx context.Context, queue *jobQueue, outcomes chan<- outcome) {
	for {
		j, ok := queue.Next(ctx)
		if !ok {
			return
		}
		watch := lap.New(b.opts.Clock)
		records, err := b.compute(context.WithoutCancel(ctx), j.Partition)
		if backend.IsUnavailable(err) {
			b.abort()
		}
		outcomes <- outcome{part: j.Partition, records: records, err: err, duration: watch.Elapsed()}
	}
}

// compute runs one partition through the adapter.
func (b *build) compute(ctx context.Context, part backend.Partition) ([]store.NodeRecord, error) {
	slog.Debug("job starting", "run", b.runID, "iz", part.IZ, "depth", part.SourceDepth)

	in, err := b.adapter.Translate(part, b.env)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	raw, err := b.adapter.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	traces, err := b.adapter.Parse(raw)
	if err != nil {
		return nil, err
	}
	records, err := toRecords(b.st.Config(), part.IZ, traces, b.cut)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	return records, nil
}

// commit writes a successful outcome to the store. It is only called from
// the build goroutine.
func (b *build) commit(o outcome) JobResult {
	res := JobResult{
		IZ:          o.part.IZ,
		SourceDepth: o.part.SourceDepth,
		Duration:    o.duration,
		Status:      store.JobFailed,
		Err:         o.err,
	}
	if o.err == nil {
		n, err := b.st.WritePartition(o.part.IZ, o.records, b.opts.Force)
		if err != nil {
			res.Err = fmt.Errorf("commit: %w", err)
		} else {
			res.Status = store.JobBuilt
			res.Records = n
		}
	}

	if res.Err != nil {
		slog.Error("job failed",
			"run", b.runID,
			"iz", res.IZ,
			"depth", res.SourceDepth,
			"error", res.Err,
		)
	} else {
		slog.Info("job done",
			"run", b.runID,
			"iz", res.IZ,
			"depth", res.SourceDepth,
			"records", res.Records,
			"duration", res.Duration,
		)
	}
	return res
}

// record adds a result to the report and the journal. Journal failures are
// logged; they do not fail the build.
func (b *build) record(ctx context.Context, res JobResult) {
	b.report.add(res)
	_, err := b.journal.RecordJob(context.WithoutCancel(ctx), store.JobRecord{
		BuildID:     b.runID,
		IZ:          res.IZ,
		SourceDepth: res.SourceDepth,
		Status:      res.Status,
		Error:       b.report.Jobs[len(b.report.Jobs)-1].Error,
		Duration:    res.Duration,
		Records:     res.Records,
	})
	if err != nil {
		slog.Warn("journal write failed", "run", b.runID, "iz", res.IZ, "error", err)
	}
}

// finish stamps the journal and the report.
func (b *build) finish(ctx context.Context, status store.BuildStatus, watch *lap.Stopwatch, runErr error) error {
	b.report.Status = status
	b.report.Duration = watch.Elapsed()

	if err := b.journal.FinishBuild(context.WithoutCancel(ctx), b.runID, status, b.opts.Clock.Now()); err != nil {
		runErr = errors.Join(runErr, err)
	}

	slog.Info("build finished",
		"run", b.runID,
		"status", string(status),
		"built", b.report.Built,
		"skipped", b.report.Skipped,
		"failed", b.report.Failed,
		"pending", b.report.Pending,
		"duration", b.report.Duration,
	)
	return runErr
}
