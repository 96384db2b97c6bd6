package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/lidarsynth/internal/monitoring"
)

func TestLoopbackRequest(t *testing.T) {
	t.Parallel()

	req := LoopbackRequest(http.MethodPost, "/api/config", `{"root_note":60}`)
	assert.Equal(t, "127.0.0.1:12345", req.RemoteAddr)
	assert.Equal(t, int64(16), req.ContentLength)

	req = LoopbackRequest(http.MethodGet, "/debug/", "")
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Zero(t, req.ContentLength)
}

func TestCaptureLogs(t *testing.T) {
	var logs *LogCapture
	t.Run("capture", func(t *testing.T) {
		logs = CaptureLogs(t)
		monitoring.Logf("[Tracker] created %s on channel %d", "obj-1", 3)
	})
	monitoring.Logf("after cleanup")

	assert.Equal(t, []string{"[Tracker] created obj-1 on channel 3"}, logs.Lines())
}
