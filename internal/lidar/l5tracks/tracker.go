package l5tracks

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/lidarsynth/internal/config"
	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
	"github.com/banshee-data/lidarsynth/internal/monitoring"
	"github.com/banshee-data/lidarsynth/internal/timeutil"
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	MaxDistance        float64               // cm; farther samples are dropped, modulation reaches 0 here
	MaxClusterDistance float64               // cm; cluster radius and association gate
	MinPoints          int                   // minimum points per cluster
	ScanMode           l4perception.ScanMode // segmentation strategy
	MatchMode          MatchMode             // association strategy

	RootNote         int       // MIDI note of scale degree 0
	Scale            ScaleType // degree to semitone mapping
	NotesPerRotation int       // 0 means one octave of Scale
	Velocity         uint8     // note-on velocity

	FirstChannel uint8 // channel pool range, 0-based
	LastChannel  uint8
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	seg := l4perception.DefaultSegmentParams()
	note := DefaultNoteParams()
	return TrackerConfig{
		MaxDistance:        seg.MaxDistance,
		MaxClusterDistance: seg.MaxClusterDistance,
		MinPoints:          seg.MinPoints,
		ScanMode:           seg.Mode,
		MatchMode:          MatchFirst,
		RootNote:           note.RootNote,
		Scale:              note.Scale,
		NotesPerRotation:   note.NotesPerRotation,
		Velocity:           note.Velocity,
		FirstChannel:       DefaultFirstChannel,
		LastChannel:        DefaultLastChannel,
	}
}

// TrackerConfigFromTuning derives tracker config from a TuningConfig.
// Values the tuning file cannot express keep their defaults. Unknown enum
// names fall back to defaults; LoadTuningConfig has already rejected them.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	c := DefaultTrackerConfig()
	if cfg == nil {
		return c
	}
	c.MaxDistance = cfg.GetMaxDistanceCm()
	c.MaxClusterDistance = cfg.GetMaxClusterDistanceCm()
	c.MinPoints = cfg.GetMinPointsPerCluster()
	if m, err := l4perception.ParseScanMode(cfg.GetScanMode()); err == nil {
		c.ScanMode = m
	}
	if m, err := ParseMatchMode(cfg.GetMatchMode()); err == nil {
		c.MatchMode = m
	}
	c.RootNote = cfg.GetRootNote()
	if s, err := ParseScaleType(cfg.GetScaleType()); err == nil {
		c.Scale = s
	}
	c.NotesPerRotation = cfg.GetNotesPerRotation()
	c.Velocity = uint8(cfg.GetNoteVelocity())
	c.FirstChannel = uint8(cfg.GetFirstChannel())
	c.LastChannel = uint8(cfg.GetLastChannel())
	return c
}

func (c TrackerConfig) segmentParams() l4perception.SegmentParams {
	return l4perception.SegmentParams{
		MaxDistance:        c.MaxDistance,
		MaxClusterDistance: c.MaxClusterDistance,
		MinPoints:          c.MinPoints,
		Mode:               c.ScanMode,
	}
}

// NoteParams returns the note mapping shared by every live object.
func (c TrackerConfig) NoteParams() NoteParams {
	return NoteParams{
		RootNote:         c.RootNote,
		Scale:            c.Scale,
		MaxDistance:      c.MaxDistance,
		NotesPerRotation: c.NotesPerRotation,
		Velocity:         c.Velocity,
	}
}

// TrackerOptions supplies the tracker's collaborators. Zero fields get
// defaults: NopOutput, the wall clock, and a pool over the configured
// channel range.
type TrackerOptions struct {
	Output Output
	Clock  timeutil.Clock
	Pool   *ChannelPool
}

// TrackerStats are cumulative counters since construction or Reset.
type TrackerStats struct {
	Rotations         int64 `json:"rotations"`
	Created           int64 `json:"created"`
	Removed           int64 `json:"removed"`
	DroppedCandidates int64 `json:"dropped_candidates"` // clusters left untracked for want of a channel
	ChannelsInUse     int   `json:"channels_in_use"`
	ChannelCapacity   int   `json:"channel_capacity"`

	LastSegment l4perception.SegmentStats `json:"last_segment"`
}

// Tracker matches clusters to tracked objects once per rotation and drives
// their output. ProcessBuffer must not be called concurrently with itself;
// the read accessors may be called from any goroutine.
type Tracker struct {
	mu sync.RWMutex

	config    TrackerConfig
	segmenter *l4perception.Segmenter
	pool      *ChannelPool
	out       Output
	clock     timeutil.Clock

	objects  []*TrackedObject // insertion order
	clusters []l4perception.Cluster
	stats    TrackerStats
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(config TrackerConfig, opts TrackerOptions) *Tracker {
	if opts.Output == nil {
		opts.Output = NopOutput{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Pool == nil {
		opts.Pool = NewChannelPool(config.FirstChannel, config.LastChannel)
	}
	return &Tracker{
		config:    config,
		segmenter: l4perception.NewSegmenter(config.segmentParams()),
		pool:      opts.Pool,
		out:       opts.Output,
		clock:     opts.Clock,
	}
}

// ProcessBuffer runs one rotation: segment the samples, match clusters to
// objects, remove objects that went unmatched, and emit control values for
// the rest. The buffer is emptied before return so the producer may refill
// it.
func (t *Tracker) ProcessBuffer(buf *[]l4perception.PolarSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.clusters = t.segmenter.Segment(*buf)
	*buf = (*buf)[:0]

	t.stats.Rotations++
	t.stats.LastSegment = t.segmenter.Stats()

	for _, o := range t.objects {
		o.Matched = false
	}

	centroids := make([]l4perception.Point, len(t.clusters))
	for i, c := range t.clusters {
		centroids[i] = c.Centroid()
	}

	switch t.config.MatchMode {
	case MatchNearest, MatchOptimal:
		var assign []int
		if t.config.MatchMode == MatchNearest {
			assign = nearestAssign(t.objects, centroids, t.config.MaxClusterDistance)
		} else {
			assign = optimalAssign(t.objects, centroids, t.config.MaxClusterDistance)
		}
		existing := t.objects
		for ci, oi := range assign {
			if oi >= 0 {
				existing[oi].update(centroids[ci], now)
				continue
			}
			t.spawn(centroids[ci])
		}
	default:
		for _, c := range centroids {
			if oi := firstMatch(t.objects, c, t.config.MaxClusterDistance); oi >= 0 {
				t.objects[oi].update(c, now)
				continue
			}
			t.spawn(c)
		}
	}

	t.removeUnmatched()

	for _, o := range t.objects {
		o.emit(t.out)
	}
	t.stats.ChannelsInUse = t.pool.InUse()
	t.stats.ChannelCapacity = t.pool.Capacity()
}

// spawn creates an object at c if a channel is free. Without a channel the
// candidate is dropped; it gets another chance next rotation.
func (t *Tracker) spawn(c l4perception.Point) {
	ch, ok := t.pool.Acquire()
	if !ok {
		t.stats.DroppedCandidates++
		return
	}
	id := fmt.Sprintf("obj_%s", uuid.NewString())
	t.objects = append(t.objects, newTrackedObject(id, ch, c, t.config.NoteParams(), t.clock.Now()))
	t.stats.Created++
}

func (t *Tracker) removeUnmatched() {
	kept := t.objects[:0]
	for _, o := range t.objects {
		if o.Matched {
			kept = append(kept, o)
			continue
		}
		o.release(t.out)
		t.pool.Release(o.Channel)
		t.stats.Removed++
	}
	for i := len(kept); i < len(t.objects); i++ {
		t.objects[i] = nil
	}
	t.objects = kept
}

// Reset stops every sounding note, frees all channels and forgets all
// objects and clusters. Counters are cleared.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, o := range t.objects {
		o.release(t.out)
		t.pool.Release(o.Channel)
	}
	if n := len(t.objects); n > 0 {
		monitoring.Logf("[Tracker] reset released %d objects", n)
	}
	t.objects = nil
	t.clusters = nil
	t.stats = TrackerStats{ChannelCapacity: t.pool.Capacity()}
}

// UpdateConfig applies fn to a copy of the config and installs the result.
// Segmentation picks the change up at the next rotation; live objects get
// the new note mapping immediately and play it at the next emit. The
// channel range is fixed at construction and is not changed here.
func (t *Tracker) UpdateConfig(fn func(*TrackerConfig)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.config
	fn(&next)
	next.FirstChannel, next.LastChannel = t.config.FirstChannel, t.config.LastChannel
	t.config = next
	t.segmenter.SetParams(next.segmentParams())

	params := next.NoteParams()
	for _, o := range t.objects {
		o.setParams(params)
	}
}

// SetMaxDistance sets the range cut-off and the modulation span.
func (t *Tracker) SetMaxDistance(cm float64) {
	t.UpdateConfig(func(c *TrackerConfig) { c.MaxDistance = cm })
}

// SetMaxClusterDistance sets the cluster radius and association gate.
func (t *Tracker) SetMaxClusterDistance(cm float64) {
	t.UpdateConfig(func(c *TrackerConfig) { c.MaxClusterDistance = cm })
}

// SetMinPoints sets the minimum cluster size.
func (t *Tracker) SetMinPoints(n int) {
	t.UpdateConfig(func(c *TrackerConfig) { c.MinPoints = n })
}

// SetScanMode selects the segmentation strategy.
func (t *Tracker) SetScanMode(m l4perception.ScanMode) {
	t.UpdateConfig(func(c *TrackerConfig) { c.ScanMode = m })
}

// SetMatchMode selects the association strategy.
func (t *Tracker) SetMatchMode(m MatchMode) {
	t.UpdateConfig(func(c *TrackerConfig) { c.MatchMode = m })
}

// SetRootNote re-roots every live object.
func (t *Tracker) SetRootNote(note int) {
	t.UpdateConfig(func(c *TrackerConfig) { c.RootNote = note })
}

// SetScaleType changes the scale of every live object.
func (t *Tracker) SetScaleType(s ScaleType) {
	t.UpdateConfig(func(c *TrackerConfig) { c.Scale = s })
}

// Config returns a copy of the current configuration.
func (t *Tracker) Config() TrackerConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// Clusters returns a copy of the clusters found in the last rotation.
func (t *Tracker) Clusters() []l4perception.Cluster {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]l4perception.Cluster, len(t.clusters))
	for i, c := range t.clusters {
		out[i] = l4perception.Cluster{ID: c.ID, Points: append([]l4perception.Point(nil), c.Points...)}
	}
	return out
}

// ClusterCount returns how many clusters the last rotation produced.
func (t *Tracker) ClusterCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clusters)
}

// Objects returns copies of the live objects in insertion order.
func (t *Tracker) Objects() []TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TrackedObject, len(t.objects))
	for i, o := range t.objects {
		out[i] = *o
	}
	return out
}

// ObjectCount returns the number of live objects.
func (t *Tracker) ObjectCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.objects)
}

// Stats returns the cumulative counters.
func (t *Tracker) Stats() TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.stats
	s.ChannelsInUse = t.pool.InUse()
	s.ChannelCapacity = t.pool.Capacity()
	return s
}
