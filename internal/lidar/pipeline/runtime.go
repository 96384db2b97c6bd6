package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/lidarsynth/internal/lidar/l1packets"
	"github.com/banshee-data/lidarsynth/internal/lidar/l2frames"
	"github.com/banshee-data/lidarsynth/internal/lidar/l5tracks"
	"github.com/banshee-data/lidarsynth/internal/lidar/recorder"
	"github.com/banshee-data/lidarsynth/internal/monitoring"
	"github.com/banshee-data/lidarsynth/internal/timeutil"
)

// RotationSink receives a summary of every processed rotation.
// *recorder.Store satisfies it.
type RotationSink interface {
	RecordRotation(r recorder.RotationRecord) error
}

// RuntimeConfig holds the loop's timing parameters.
type RuntimeConfig struct {
	Buffer l2frames.RotationBufferConfig

	// RotationTimeout bounds how long a rotation may stay open. A partial
	// rotation older than this when the next sample arrives is discarded
	// as stale. Zero disables the check.
	RotationTimeout time.Duration

	// LogInterval is how often LogStats runs. Zero disables it.
	LogInterval time.Duration
}

// RuntimeOptions supplies optional collaborators.
type RuntimeOptions struct {
	Sink  RotationSink
	Stats *Stats
	Clock timeutil.Clock
}

// Runtime owns the rotation buffer and drives the tracker from a single
// goroutine.
type Runtime struct {
	cfg     RuntimeConfig
	source  l1packets.Source
	buffer  *l2frames.RotationBuffer
	tracker *l5tracks.Tracker
	stats   *Stats
	sink    RotationSink
	clock   timeutil.Clock

	rotationStart time.Time
	lastProcessed time.Time
	lastLog       time.Time
	overflows     int64
}

// NewRuntime wires source to tracker.
func NewRuntime(source l1packets.Source, tracker *l5tracks.Tracker, cfg RuntimeConfig, opts RuntimeOptions) *Runtime {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Stats == nil {
		opts.Stats = NewStats(opts.Clock)
	}
	return &Runtime{
		cfg:     cfg,
		source:  source,
		buffer:  l2frames.NewRotationBuffer(cfg.Buffer),
		tracker: tracker,
		stats:   opts.Stats,
		sink:    opts.Sink,
		clock:   opts.Clock,
		lastLog: opts.Clock.Now(),
	}
}

// Stats returns the runtime's counters.
func (r *Runtime) Stats() *Stats { return r.stats }

// BufferStats returns the rotation buffer's counters. Call it only from
// the goroutine running Run, or after Run has returned.
func (r *Runtime) BufferStats() l2frames.RotationBufferStats { return r.buffer.Stats() }

// Run reads the source until it is exhausted or ctx is done. A source
// that ends returns nil; cancellation returns ctx.Err(). The rotation in
// progress when the loop stops is never processed.
func (r *Runtime) Run(ctx context.Context) error {
	monitoring.Logf("[pipeline] running (buffer %d samples, rotation timeout %v)", r.buffer.Capacity(), r.cfg.RotationTimeout)
	for {
		node, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				monitoring.Logf("[pipeline] source exhausted after %d rotations", r.buffer.Stats().Rotations)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read node: %w", err)
		}
		r.Step(node)
	}
}

// Step feeds one node through the buffer and processes the rotation it
// completes, if any.
func (r *Runtime) Step(node l1packets.Node) {
	now := r.clock.Now()
	r.stats.AddSamples(1)

	if node.StartFlag || r.rotationStart.IsZero() {
		r.rotationStart = now
	} else if r.cfg.RotationTimeout > 0 && r.buffer.Len() > 0 && now.Sub(r.rotationStart) > r.cfg.RotationTimeout {
		opsf("rotation open for %v, discarding %d samples", now.Sub(r.rotationStart), r.buffer.Len())
		r.buffer.Discard()
		r.stats.AddStale()
		r.rotationStart = now
	}

	ready := r.buffer.Add(node.Sample(), node.StartFlag)
	if n := r.buffer.Overflows(); n != r.overflows {
		r.overflows = n
		r.stats.AddOverflow()
		opsf("rotation exceeded %d samples and was discarded (%d overflows)", r.buffer.Capacity(), n)
	}
	if ready {
		r.process(now)
	}
	r.maybeLog(now)
}

func (r *Runtime) process(now time.Time) {
	buf := r.buffer.Swap()
	if buf == nil {
		return
	}
	size := len(*buf)

	start := r.clock.Now()
	r.tracker.ProcessBuffer(buf)
	processing := r.clock.Since(start)

	var total time.Duration
	if !r.lastProcessed.IsZero() {
		total = start.Sub(r.lastProcessed)
	}
	r.lastProcessed = start

	r.stats.RecordRotation(size, processing, total)
	ts := r.tracker.Stats()
	objects, clusters := r.tracker.ObjectCount(), r.tracker.ClusterCount()
	r.stats.SetObjectCount(objects)
	tracef("rotation of %d samples: %d clusters, %d objects, %v", size, clusters, objects, processing)

	if r.sink == nil {
		return
	}
	err := r.sink.RecordRotation(recorder.RotationRecord{
		Time:     now,
		Samples:  size,
		Usable:   ts.LastSegment.Points,
		Clusters: clusters,
		Objects:  objects,
		Stats:    ts,
	})
	if err != nil {
		opsf("record rotation: %v", err)
	}
}

func (r *Runtime) maybeLog(now time.Time) {
	if r.cfg.LogInterval <= 0 || now.Sub(r.lastLog) < r.cfg.LogInterval {
		return
	}
	r.lastLog = now
	r.stats.LogStats()
}
