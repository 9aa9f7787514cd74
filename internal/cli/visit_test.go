package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runnerr0/navstatus/internal/engine"
	"github.com/runnerr0/navstatus/internal/storage"
)

// fakeDriver plays a single document load through the translator it was
// opened with.
type fakeDriver struct {
	tr       *engine.Translator
	status   int
	redirect int
	navErr   error
	stop     bool
	closed   bool
	opts     engine.BrowserOptions
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	target := url
	d.tr.RequestWillBeSent(engine.Request{ID: "doc", Frame: "main", URL: url, Document: true})
	if d.redirect != 0 {
		target = url + "landing"
		d.tr.RequestWillBeSent(engine.Request{
			ID: "doc", Frame: "main", URL: target, Document: true,
			RedirectFrom: url, RedirectStatus: d.redirect,
		})
	}
	if d.stop {
		d.tr.LoadingFailed("doc", "net::ERR_ABORTED", true)
		return d.navErr
	}
	d.tr.ResponseReceived("doc", target, d.status, "text/html")
	d.tr.RequestWillBeSent(engine.Request{ID: "js", Frame: "main", URL: target + "app.js"})
	d.tr.ResponseReceived("js", target+"app.js", 200, "application/javascript")
	d.tr.LoadingFinished("doc")
	d.tr.LoadingFinished("js")
	d.tr.FrameStoppedLoading("main")
	return d.navErr
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func fakeOpener(drv *fakeDriver) driverOpener {
	return func(ctx context.Context, opts engine.BrowserOptions, tr *engine.Translator, log *zap.Logger) (engine.Driver, error) {
		drv.tr = tr
		drv.opts = opts
		return drv, nil
	}
}

func TestVisit_RecordsSettledStatus(t *testing.T) {
	store := newTestStore(t)
	drv := &fakeDriver{status: 200}
	cmd := &VisitCommand{
		URL:        "https://example.com/",
		globals:    &GlobalFlags{},
		openDriver: fakeOpener(drv),
	}

	output := captureOutput(t, func() {
		err := cmd.executeWithStore(testConfig(t), store)
		require.NoError(t, err)
	})

	assert.Contains(t, output, "200 https://example.com/")
	assert.Contains(t, output, "Recorded as NAV-")
	assert.True(t, drv.closed)
	assert.Equal(t, engine.EngineRod, drv.opts.Engine)
	assert.Equal(t, 0, monitors.Len(), "session monitor released")

	outcomes, err := store.SearchOutcomes(context.Background(), storage.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 200, outcomes[0].StatusCode)
	assert.Equal(t, "example.com", outcomes[0].Domain)
	assert.Equal(t, "rod", outcomes[0].Engine)
	assert.False(t, outcomes[0].TimedOut)
}

func TestVisit_RedirectSettlesOnFinalStatus(t *testing.T) {
	drv := &fakeDriver{status: 200, redirect: 301}
	cmd := &VisitCommand{
		URL:        "http://example.com/",
		globals:    &GlobalFlags{JSON: true},
		openDriver: fakeOpener(drv),
	}

	output := captureOutput(t, func() {
		err := cmd.executeWithStore(testConfig(t), nil)
		require.NoError(t, err)
	})

	var result outcomeJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result), "output should be valid JSON: %s", output)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, "http://example.com/landing", result.URL)
	assert.False(t, result.Recorded)
}

func TestVisit_ErrorStatus(t *testing.T) {
	store := newTestStore(t)
	drv := &fakeDriver{status: 404}
	cmd := &VisitCommand{
		URL:        "https://example.com/missing/",
		globals:    &GlobalFlags{},
		openDriver: fakeOpener(drv),
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(testConfig(t), store))
	})

	assert.Contains(t, output, "404 https://example.com/missing/")
}

func TestVisit_StoppedLoad(t *testing.T) {
	drv := &fakeDriver{stop: true, navErr: errors.New("navigation aborted")}
	cmd := &VisitCommand{
		URL:        "https://slow.example/",
		globals:    &GlobalFlags{JSON: true},
		openDriver: fakeOpener(drv),
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(testConfig(t), nil))
	})

	var result outcomeJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, 499, result.StatusCode)
}

func TestVisit_EngineOverride(t *testing.T) {
	drv := &fakeDriver{status: 200}
	cmd := &VisitCommand{
		URL:         "https://example.com/",
		Engine:      engine.EngineChromedp,
		DebuggerURL: "ws://127.0.0.1:9222/devtools/browser/x",
		globals:     &GlobalFlags{},
		openDriver:  fakeOpener(drv),
	}

	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(testConfig(t), nil))
	})

	assert.Equal(t, engine.EngineChromedp, drv.opts.Engine)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", drv.opts.DebuggerURL)
}

func TestVisit_ExcludedDomainNotRecorded(t *testing.T) {
	store := newTestStore(t, "example.com")
	drv := &fakeDriver{status: 200}
	cmd := &VisitCommand{
		URL:        "https://www.example.com/",
		globals:    &GlobalFlags{},
		openDriver: fakeOpener(drv),
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(testConfig(t), store))
	})

	assert.Contains(t, output, "200 https://www.example.com/")
	assert.NotContains(t, output, "Recorded as")

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalOutcomes)
}

func TestVisit_InvalidURL(t *testing.T) {
	cmd := &VisitCommand{URL: "example.com", globals: &GlobalFlags{}}
	err := cmd.executeWithStore(testConfig(t), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestVisit_OpenError(t *testing.T) {
	cmd := &VisitCommand{
		URL:     "https://example.com/",
		globals: &GlobalFlags{},
		openDriver: func(ctx context.Context, opts engine.BrowserOptions, tr *engine.Translator, log *zap.Logger) (engine.Driver, error) {
			return nil, errors.New("no browser")
		},
	}
	err := cmd.executeWithStore(testConfig(t), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no browser")
}
