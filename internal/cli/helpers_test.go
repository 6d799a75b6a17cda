package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gfstore/internal/config"
	"github.com/roach88/gfstore/internal/testutil"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig writes cfg as YAML into dir.
func writeConfig(t *testing.T, dir string, cfg *config.Config) string {
	t.Helper()
	data, err := cfg.Marshal()
	require.NoError(t, err)
	return testutil.WriteFile(t, dir, cfg.ID+".yaml", data)
}

// initStore creates a store from cfg and returns its directory.
func initStore(t *testing.T, cfg *config.Config) string {
	t.Helper()
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "store")
	_, err := execute(t, "init", dir, "--config", writeConfig(t, tmp, cfg))
	require.NoError(t, err)
	return dir
}

// builtStore creates and builds a small ahfull store.
func builtStore(t *testing.T, cfg *config.Config) string {
	t.Helper()
	dir := initStore(t, cfg)
	_, err := execute(t, "build", dir, "--workers", "2")
	require.NoError(t, err)
	return dir
}

const testSource = `type: mt
depth: 6000
m6: [1, -1, 0.5, 0.2, -0.3, 0.1]
`

// writeQuery writes a source document and targets for a receiver north of
// the source at distance (m).
func writeQuery(t *testing.T, distance string) (source, targets string) {
	t.Helper()
	dir := t.TempDir()
	source = testutil.WriteFile(t, dir, "source.yaml", []byte(testSource))
	targets = testutil.WriteFile(t, dir, "targets.yaml", []byte(`targets:
  - codes: {network: XX, station: STA, location: "", channel: Z}
    north_shift: `+distance+`
  - codes: {network: XX, station: STA, location: "", channel: R}
    north_shift: `+distance+`
`))
	return source, targets
}
