package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// stderrTail bounds how much standard error is kept in errors.
const stderrTail = 512

// Runner executes the invocations of an Input in a private work dir.
type Runner struct {
	Family  string
	TmpDir  string
	KeepTmp bool
	Timeout time.Duration
}

// NewRunner creates a runner for family with the given options.
func NewRunner(family string, opts Options) *Runner {
	return &Runner{
		Family:  family,
		TmpDir:  opts.TmpDir,
		KeepTmp: opts.KeepTmp,
		Timeout: opts.Timeout,
	}
}

// Run executes every invocation in order and collects their outputs.
// The work dir is removed afterwards unless KeepTmp is set.
func (r *Runner) Run(ctx context.Context, in *Input) (*RawOutput, error) {
	root, err := os.MkdirTemp(r.TmpDir, fmt.Sprintf("%s-z%d-", r.Family, in.Partition.IZ))
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if r.KeepTmp {
		slog.Info("keeping work dir", "family", r.Family, "dir", root)
	} else {
		defer os.RemoveAll(root)
	}

	out := &RawOutput{Partition: in.Partition, Files: make(map[string][]byte), Payload: in.Payload}
	for i := range in.Invocations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.invoke(ctx, root, &in.Invocations[i], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Runner) invoke(ctx context.Context, root string, inv *Invocation, out *RawOutput) error {
	wd := filepath.Join(root, inv.Dir)
	if err := os.MkdirAll(wd, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	for name, data := range inv.Files {
		if err := os.WriteFile(filepath.Join(wd, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	path, err := exec.LookPath(inv.Program)
	if err != nil {
		return &UnavailableError{Family: r.Family, Program: inv.Program, Err: err}
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, path)
	cmd.Dir = wd
	cmd.Stdin = strings.NewReader(inv.InputFile + "\n")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &UnavailableError{Family: r.Family, Program: inv.Program, Err: err}
	}
	err = cmd.Wait()
	out.Stdout = append(out.Stdout, stdout.Bytes()...)
	out.Stderr = append(out.Stderr, stderr.Bytes()...)

	slog.Debug("program finished",
		"family", r.Family,
		"program", inv.Program,
		"dir", inv.Dir,
		"duration", time.Since(start),
		"error", err,
	)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return &ExecutionError{
			Family:   r.Family,
			Program:  inv.Program,
			ExitCode: -1,
			Reason:   fmt.Sprintf("timed out after %s", r.Timeout),
			Stderr:   tail(stderr.Bytes()),
			Err:      context.DeadlineExceeded,
		}
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExecutionError{
			Family:   r.Family,
			Program:  inv.Program,
			ExitCode: code,
			Reason:   fmt.Sprintf("exited with status %d", code),
			Stderr:   tail(stderr.Bytes()),
			Err:      err,
		}
	}

	for _, name := range inv.Outputs {
		data, err := os.ReadFile(filepath.Join(wd, name))
		if err != nil {
			return &ExecutionError{
				Family:  r.Family,
				Program: inv.Program,
				Reason:  fmt.Sprintf("missing output %s", name),
				Stderr:  tail(stderr.Bytes()),
				Err:     err,
			}
		}
		out.Files[filepath.Join(inv.Dir, name)] = data
	}

	for name, dest := range inv.Keep {
		if err := copyFile(filepath.Join(wd, name), dest); err != nil {
			return &ExecutionError{
				Family:  r.Family,
				Program: inv.Program,
				Reason:  fmt.Sprintf("keep output %s", name),
				Err:     err,
			}
		}
	}
	return nil
}

// copyFile copies src to dst through a temporary file in dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
