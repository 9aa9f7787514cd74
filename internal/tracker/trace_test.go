package tracker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/navstatus/internal/config"
	"github.com/runnerr0/navstatus/internal/loadevent"
	"github.com/runnerr0/navstatus/internal/logging"
	"github.com/runnerr0/navstatus/internal/statusmon"
)

func traceLines(t *testing.T, path, label string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(data), `"msg":"`+label+`"`)
}

func TestTracker_TraceKeepsEveryEventWithDefaultLogging(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.File = filepath.Join(t.TempDir(), "trace.log")
	log, err := logging.New(cfg)
	require.NoError(t, err)

	tr := New(newFakeEndpoint(nil), Options{Trace: true, Logger: log})
	t.Cleanup(tr.Close)

	const n = 300
	for i := 0; i < n; i++ {
		tr.DispatchResourceEvent(rsrc(loadevent.ResourceStarted))
	}
	_ = log.Sync()

	assert.Equal(t, n, traceLines(t, cfg.File, "Rsrc"))
}

func TestTracker_TraceIgnoresQuietLogLevel(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.Level = "warn"
	cfg.File = filepath.Join(t.TempDir(), "trace.log")
	log, err := logging.New(cfg)
	require.NoError(t, err)
	tracer, err := logging.NewTrace(cfg)
	require.NoError(t, err)

	tr := New(newFakeEndpoint(nil), Options{Trace: true, Logger: log, Tracer: tracer})
	t.Cleanup(tr.Close)

	for i := 0; i < 150; i++ {
		tr.DispatchResourceEvent(rsrc(loadevent.ResourceFinished))
	}
	tr.DispatchLoadEvent(page("1", loadevent.PageStarted, "data:text/html,hi"))
	_ = tracer.Sync()

	assert.Equal(t, 150, traceLines(t, cfg.File, "Rsrc"))
	assert.Equal(t, 1, traceLines(t, cfg.File, "Page"))
}

func TestTracker_SettlementCarriesLoadTime(t *testing.T) {
	mon := statusmon.New()
	tr, settled := newTestTracker(t, mon, time.Second)

	tr.DispatchLoadEvent(page("1", loadevent.PageStarted, "https://a"))
	mon.Record("https://a", 200)
	time.Sleep(20 * time.Millisecond)
	tr.DispatchLoadEvent(page("1", loadevent.PageFinished, "https://a"))

	assert.Equal(t, 200, awaitStatus(t, tr, time.Second))
	require.Eventually(t, func() bool { return len(settled.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, settled.all()[0].LoadTime, 20*time.Millisecond)
}

func TestTracker_LoadTimeZeroWithoutTimer(t *testing.T) {
	tr, settled := newTestTracker(t, newFakeEndpoint(map[string]int{"https://a": 200}), time.Second)

	tr.DispatchLoadEvent(page("1", loadevent.PageStarted, "https://a"))
	tr.DispatchLoadEvent(page("1", loadevent.PageFinished, "https://a"))

	assert.Equal(t, 200, awaitStatus(t, tr, time.Second))
	require.Eventually(t, func() bool { return len(settled.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, settled.all()[0].LoadTime)
}
