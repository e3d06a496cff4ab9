package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavanmanishd/memkit/arena"
	"github.com/pavanmanishd/memkit/blockpool"
	"github.com/pavanmanishd/memkit/internal/workload"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"memkit"}, args...))
	return out.String(), errOut.String(), err
}

func TestRunCommand(t *testing.T) {
	out, _, err := runApp(t, "run",
		"--scenario", "pool-lifo",
		"--scenario", "request",
		"--iterations", "100",
		"--slab-capacity", "16")
	require.NoError(t, err)
	assert.Contains(t, out, "pool-lifo")
	assert.Contains(t, out, "request")
	assert.Contains(t, out, "int64/16/lifo")
}

func TestRunCommandConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memkit.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenarios = ["pool-mixed"]
iterations = 80
slab_capacity = 8
`), 0o600))

	out, _, err := runApp(t, "run", "--config", path, "--slab-capacity", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "pool-mixed")
	assert.Contains(t, out, "/12/mixed", "flags override the file")
	assert.NotContains(t, out, "pool-lifo")
}

func TestRunCommandRejectsBadConfig(t *testing.T) {
	_, _, err := runApp(t, "run", "--scenario", "defrag")
	assert.ErrorContains(t, err, `unknown scenario "defrag"`)

	_, _, err = runApp(t, "run", "--config", filepath.Join(t.TempDir(), "none.toml"))
	assert.ErrorContains(t, err, "decoding workload file")
}

func TestVerboseLogsLifecycle(t *testing.T) {
	_, logs, err := runApp(t, "--verbose", "run", "--scenario", "pool-lifo", "--iterations", "20")
	require.NoError(t, err)
	assert.Contains(t, logs, "slab opened")
	assert.Contains(t, logs, "scenario finished")
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	writeResults(&buf, []workload.Result{
		{Scenario: "request", Allocations: 30, Failures: 3, Resets: 10, Elapsed: time.Millisecond,
			Arena: &arena.Metrics{SizeInUse: 0, Capacity: 8192}},
		{Scenario: "pool-lifo", Allocations: 12, PeakSlabs: 2},
	})
	out := buf.String()
	assert.Contains(t, out, "Peak slabs")
	assert.Contains(t, out, "0/8192")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 6)
}

func TestMetricsHandler(t *testing.T) {
	reg := blockpool.NewRegistry()
	p := blockpool.Lookup[int64](reg, blockpool.Options{SlabCapacity: 4, Tag: "http"})
	s := p.Allocate(2)
	defer p.Deallocate(s)

	h, err := metricsHandler(reg.Collector())
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `memkit_blockpool_live_allocations{elem="int64",pool="int64/4/http",tag="http",thread_safe="false"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestScrapeDuringWorkloadRounds(t *testing.T) {
	cfg := workload.DefaultConfig()
	cfg.Scenarios = []string{workload.ScenarioPoolLIFO, workload.ScenarioPoolMixed}
	cfg.Iterations = 400
	cfg.SlabCapacity = 8
	r, err := workload.New(cfg, workload.WithRegistry(blockpool.NewRegistry()))
	require.NoError(t, err)

	var pub blockpool.Published
	h, err := metricsHandler(pub.Collector())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runRounds(ctx, r, &pub, time.Millisecond, slog.New(slog.DiscardHandler))
	}()

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Eventually(t, func() bool { return len(pub.Stats()) == 2 }, 10*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `memkit_blockpool_slabs{elem="int64",pool="int64/8/lifo",tag="lifo",thread_safe="false"} 0`)
}
