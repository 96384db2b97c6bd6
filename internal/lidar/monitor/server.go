package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/lidarsynth/internal/config"
	"github.com/banshee-data/lidarsynth/internal/httputil"
	"github.com/banshee-data/lidarsynth/internal/lidar/l5tracks"
	"github.com/banshee-data/lidarsynth/internal/lidar/pipeline"
	"github.com/banshee-data/lidarsynth/internal/lidar/recorder"
	"github.com/banshee-data/lidarsynth/internal/midiout"
	"github.com/banshee-data/lidarsynth/internal/monitoring"
)

// ServerConfig contains configuration options for the monitor server.
type ServerConfig struct {
	Address string
	Tracker *l5tracks.Tracker
	Stats   *pipeline.Stats

	// Tuning is the configuration the process started with. Runtime
	// updates are merged on top of a copy.
	Tuning *config.TuningConfig

	// Optional
	Store  *recorder.Store
	Events *midiout.Recorder
	Output *midiout.MessageOutput
	Source string
}

// Server exposes tracker state, live tuning and debug plots over HTTP.
type Server struct {
	address string
	tracker *l5tracks.Tracker
	stats   *pipeline.Stats
	store   *recorder.Store
	events  *midiout.Recorder
	output  *midiout.MessageOutput
	source  string

	mu     sync.Mutex
	tuning *config.TuningConfig

	server *http.Server
}

// NewServer creates a monitor server. Tracker is required.
func NewServer(cfg ServerConfig) *Server {
	tuning := config.EmptyTuningConfig()
	tuning.Merge(cfg.Tuning)
	s := &Server{
		address: cfg.Address,
		tracker: cfg.Tracker,
		stats:   cfg.Stats,
		store:   cfg.Store,
		events:  cfg.Events,
		output:  cfg.Output,
		source:  cfg.Source,
		tuning:  tuning,
	}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/events", s.handleEvents)
	s.attachDebugRoutes(mux)
	return mux
}

// attachDebugRoutes registers the /debug/ page with live readouts and the
// plot endpoints.
func (s *Server) attachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("Source", s.source)
	if s.stats != nil {
		debug.KVFunc("Samples/s", func() any { return pipeline.FormatWithCommas(s.stats.Snapshot().SamplesPerSecond) })
		debug.KVFunc("Rotation buffer", func() any { return s.stats.Snapshot().BufferSize })
		debug.KVFunc("Total latency (ms)", func() any { return s.stats.Snapshot().TotalLatencyMs })
		debug.KVFunc("Processing latency (ms)", func() any { return s.stats.Snapshot().ProcessingLatencyMs })
		debug.KVFunc("Discarded rotations", func() any {
			snap := s.stats.Snapshot()
			return snap.Overflows + snap.Stale
		})
	}
	debug.KVFunc("Objects", func() any { return s.tracker.ObjectCount() })
	debug.KVFunc("Channels in use", func() any {
		ts := s.tracker.Stats()
		return fmt.Sprintf("%d / %d", ts.ChannelsInUse, ts.ChannelCapacity)
	})
	debug.KVFunc("Dropped candidates", func() any { return s.tracker.Stats().DroppedCandidates })
	if s.output != nil {
		debug.KVFunc("MIDI messages sent", func() any { return s.output.Sent() })
		debug.KVFunc("MIDI send failures", func() any { return s.output.Failed() })
	}

	debug.Handle("plot", "Clusters and tracked objects (interactive)", http.HandlerFunc(s.handlePlot))
	debug.Handle("plot.png", "Clusters and tracked objects (PNG)", http.HandlerFunc(s.handlePlotPNG))
	debug.HandleSilentFunc("state", s.handleState)
}

// Start serves until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("[monitor] listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	monitoring.Logf("[monitor] shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[monitor] shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("[monitor] force close error: %v", err)
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.tracker.Reset()
	monitoring.Logf("[monitor] tracker reset requested by %s", r.RemoteAddr)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "session recording is disabled")
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		events, err := s.store.NoteEvents(id)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, events)
		return
	}
	sessions, err := s.store.Sessions()
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.events == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no event history")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.events.Events())
}
