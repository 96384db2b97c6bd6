// Package testutil provides shared test helpers.
package testutil

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/lidarsynth/internal/monitoring"
)

// LoopbackRequest creates an httptest request with RemoteAddr set to
// loopback so that tsweb.AllowDebugAccess returns true.
func LoopbackRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// LogCapture collects the lines written through monitoring.Logf.
type LogCapture struct {
	mu    sync.Mutex
	lines []string
}

func (c *LogCapture) logf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the captured lines.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// CaptureLogs redirects monitoring.Logf until the test ends. The logger is
// process-wide, so tests that call it must not use t.Parallel.
func CaptureLogs(t testing.TB) *LogCapture {
	t.Helper()
	c := &LogCapture{}
	monitoring.SetLogger(c.logf)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	return c
}
