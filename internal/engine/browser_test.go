package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/navstatus/internal/statusmon"
	"github.com/runnerr0/navstatus/internal/tracker"
)

// Drives a real browser. Set NAVSTATUS_BROWSER_TEST=1 with Chrome or
// Chromium installed to run.
func TestDriver_LiveStatus(t *testing.T) {
	if os.Getenv("NAVSTATUS_BROWSER_TEST") == "" {
		t.Skip("set NAVSTATUS_BROWSER_TEST=1 to drive a real browser")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img src="/pixel"></body></html>`))
	})
	mux.HandleFunc("/pixel", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, engineName := range []string{EngineRod, EngineChromedp} {
		for path, want := range map[string]int{"/ok": 200, "/gone": 410} {
			t.Run(engineName+path, func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				mon := statusmon.New()
				tr := tracker.New(mon, tracker.Options{})
				defer tr.Close()

				drv, err := Open(ctx, BrowserOptions{Engine: engineName, Headless: true}, NewTranslator(tr, mon), nil)
				require.NoError(t, err)
				defer drv.Close()

				tr.ResetStatusCode()
				require.NoError(t, drv.Navigate(ctx, srv.URL+path))
				code, err := tr.Await(ctx)
				require.NoError(t, err)
				assert.Equal(t, want, code)
			})
		}
	}
}
