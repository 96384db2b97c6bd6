package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/lidarsynth/internal/monitoring"
	"github.com/banshee-data/lidarsynth/internal/timeutil"
)

// StatsSnapshot is a point-in-time copy of the runtime counters.
type StatsSnapshot struct {
	SamplesPerSecond    int64     `json:"samples_per_second"`
	BufferSize          int       `json:"buffer_size"`
	TotalLatencyMs      int64     `json:"total_latency_ms"`
	ProcessingLatencyMs int64     `json:"processing_latency_ms"`
	ObjectCount         int       `json:"object_count"`
	Overflows           int64     `json:"overflows"`
	Stale               int64     `json:"stale"`
	Rotations           int64     `json:"rotations"`
	Timestamp           time.Time `json:"timestamp"`
}

// Stats tracks sample throughput and per-rotation latency. It is safe for
// concurrent use.
type Stats struct {
	mu    sync.Mutex
	clock timeutil.Clock

	sampleCount      int64
	samplesPerSecond int64
	lastRoll         time.Time

	bufferSize  int
	processing  time.Duration
	total       time.Duration
	objectCount int
	overflows   int64
	stale       int64
	rotations   int64
}

// NewStats creates a Stats using clock, or the wall clock if nil.
func NewStats(clock timeutil.Clock) *Stats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Stats{clock: clock, lastRoll: clock.Now()}
}

// AddSamples counts n samples toward the current one-second window. The
// window rolls over once at least a second has passed since the last roll.
func (s *Stats) AddSamples(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleCount += int64(n)
	s.rollLocked()
}

func (s *Stats) rollLocked() {
	now := s.clock.Now()
	if now.Sub(s.lastRoll) < time.Second {
		return
	}
	s.samplesPerSecond = s.sampleCount
	s.sampleCount = 0
	s.lastRoll = now
}

// RecordRotation stores the size of the rotation just processed, how long
// processing took and how long since the previous rotation was processed.
func (s *Stats) RecordRotation(bufferSize int, processing, total time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferSize = bufferSize
	s.processing = processing
	s.total = total
	s.rotations++
}

// SetObjectCount records how many objects are being tracked.
func (s *Stats) SetObjectCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectCount = n
}

// AddOverflow counts a rotation discarded because it exceeded the buffer.
func (s *Stats) AddOverflow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overflows++
}

// AddStale counts a rotation discarded because it was never completed.
func (s *Stats) AddStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale++
}

// Snapshot returns the current values.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollLocked()
	return StatsSnapshot{
		SamplesPerSecond:    s.samplesPerSecond,
		BufferSize:          s.bufferSize,
		TotalLatencyMs:      s.total.Milliseconds(),
		ProcessingLatencyMs: s.processing.Milliseconds(),
		ObjectCount:         s.objectCount,
		Overflows:           s.overflows,
		Stale:               s.stale,
		Rotations:           s.rotations,
		Timestamp:           s.clock.Now(),
	}
}

// LogStats writes a one-line summary.
func (s *Stats) LogStats() {
	snap := s.Snapshot()
	msg := fmt.Sprintf("Lidar stats: %s samples/s, buffer %d, latency %d ms (processing %d ms), %d objects",
		FormatWithCommas(snap.SamplesPerSecond), snap.BufferSize,
		snap.TotalLatencyMs, snap.ProcessingLatencyMs, snap.ObjectCount)
	if snap.Overflows > 0 || snap.Stale > 0 {
		msg += fmt.Sprintf(", %d overflowed, %d stale", snap.Overflows, snap.Stale)
	}
	monitoring.Logf("%s", msg)
}

// FormatWithCommas formats a number with thousands separators
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	neg := false
	if str[0] == '-' {
		neg, str = true, str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	if neg {
		return "-" + result
	}
	return result
}
