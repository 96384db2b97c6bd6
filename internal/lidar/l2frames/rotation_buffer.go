package l2frames

import (
	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
)

// DefaultCapacity matches the sample buffer of the sensor firmware.
const DefaultCapacity = 1024

// RotationBufferConfig configures a RotationBuffer.
type RotationBufferConfig struct {
	Capacity int // samples per rotation before overflow (default: 1024)
}

// RotationBufferStats are cumulative counters.
type RotationBufferStats struct {
	Rotations  int64 `json:"rotations"`  // complete rotations handed off
	Overflows  int64 `json:"overflows"`  // rotations discarded for exceeding capacity
	Stale      int64 `json:"stale"`      // partial rotations dropped by Discard
	Superseded int64 `json:"superseded"` // complete rotations replaced before Swap
}

// RotationBuffer collects samples for the rotation in progress while the
// previous complete rotation waits to be processed. Two backing arrays of
// Capacity are allocated once and swapped at each rotation boundary.
//
// A RotationBuffer is owned by a single goroutine: the one that both adds
// samples and runs the tracker on the swapped-out buffer.
type RotationBuffer struct {
	capacity int

	fill  []l4perception.PolarSample // rotation in progress
	drain []l4perception.PolarSample // last complete rotation

	ready      bool // drain holds a rotation not yet swapped out
	discarding bool // overflowed; drop samples until the next rotation starts

	stats RotationBufferStats
}

// NewRotationBuffer creates a buffer with the given configuration.
func NewRotationBuffer(config RotationBufferConfig) *RotationBuffer {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	return &RotationBuffer{
		capacity: config.Capacity,
		fill:     make([]l4perception.PolarSample, 0, config.Capacity),
		drain:    make([]l4perception.PolarSample, 0, config.Capacity),
	}
}

// Add appends s to the rotation in progress. newRotation marks s as the
// first sample of a new sweep, completing the previous one. Add reports
// whether a complete rotation is waiting for Swap.
//
// Samples are passed through unfiltered; range and quality checks belong
// to segmentation. A rotation that grows past Capacity is discarded whole
// and counted as an overflow.
func (b *RotationBuffer) Add(s l4perception.PolarSample, newRotation bool) bool {
	if newRotation {
		if !b.discarding && len(b.fill) > 0 {
			b.complete()
		}
		b.discarding = false
	}
	if b.discarding {
		return b.ready
	}
	if len(b.fill) >= b.capacity {
		b.stats.Overflows++
		debugf("overflow: discarding partial rotation of %d samples", len(b.fill))
		b.fill = b.fill[:0]
		b.discarding = true
		return b.ready
	}
	b.fill = append(b.fill, s)
	return b.ready
}

func (b *RotationBuffer) complete() {
	if b.ready {
		b.stats.Superseded++
		debugf("rotation of %d samples superseded before processing", len(b.drain))
	}
	b.fill, b.drain = b.drain[:0], b.fill
	b.ready = true
	b.stats.Rotations++
}

// Ready reports whether a complete rotation is waiting.
func (b *RotationBuffer) Ready() bool { return b.ready }

// Swap hands out the complete rotation, or nil if none is waiting. The
// caller drains it (Tracker.ProcessBuffer empties it) before the next Add.
func (b *RotationBuffer) Swap() *[]l4perception.PolarSample {
	if !b.ready {
		return nil
	}
	b.ready = false
	return &b.drain
}

// Discard drops the rotation in progress, for when the sweep has stalled
// and its samples can no longer be trusted.
func (b *RotationBuffer) Discard() {
	if len(b.fill) == 0 && !b.discarding {
		return
	}
	debugf("discarding stale partial rotation of %d samples", len(b.fill))
	b.fill = b.fill[:0]
	b.discarding = false
	b.stats.Stale++
}

// Reset empties both buffers. Counters are kept.
func (b *RotationBuffer) Reset() {
	b.fill = b.fill[:0]
	b.drain = b.drain[:0]
	b.ready = false
	b.discarding = false
}

// Len returns the number of samples in the rotation in progress.
func (b *RotationBuffer) Len() int { return len(b.fill) }

// Capacity returns the per-rotation sample limit.
func (b *RotationBuffer) Capacity() int { return b.capacity }

// Overflows returns the number of rotations discarded for overflow.
func (b *RotationBuffer) Overflows() int64 { return b.stats.Overflows }

// Stats returns the cumulative counters.
func (b *RotationBuffer) Stats() RotationBufferStats { return b.stats }
