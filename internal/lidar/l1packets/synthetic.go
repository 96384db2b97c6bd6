package l1packets

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
)

// Visitor is a round body walking a circular path in front of the sensor.
type Visitor struct {
	CenterX, CenterY float64 // cm, centre of the path
	PathRadius       float64 // cm
	BodyRadius       float64 // cm
	Speed            float64 // deg/s around the path; negative runs clockwise
	Phase            float64 // deg, starting position on the path
}

// position returns the visitor's centre t seconds into the run.
func (v Visitor) position(t float64) l4perception.Point {
	a := (v.Phase + v.Speed*t) * math.Pi / 180
	return l4perception.Point{
		X: v.CenterX + v.PathRadius*math.Cos(a),
		Y: v.CenterY + v.PathRadius*math.Sin(a),
	}
}

// SyntheticConfig describes a generated scene.
type SyntheticConfig struct {
	SamplesPerRotation int     // default 360
	RotationHz         float64 // default 5.5
	BackgroundCm       float64 // range of the empty-room wall, default 600
	NoiseCm            float64 // uniform range jitter, ± this value
	DropoutRate        float64 // fraction of samples reported with quality 0
	Visitors           []Visitor
	Seed               int64
	Realtime           bool // sleep so rotations arrive at RotationHz
}

// DefaultSyntheticConfig returns a scene with two visitors inside the
// default 150 cm playing range.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		SamplesPerRotation: 360,
		RotationHz:         5.5,
		BackgroundCm:       600,
		NoiseCm:            0.5,
		Visitors: []Visitor{
			{CenterX: 60, CenterY: 0, PathRadius: 40, BodyRadius: 12, Speed: 20},
			{CenterX: -40, CenterY: 50, PathRadius: 30, BodyRadius: 10, Speed: -35, Phase: 90},
		},
		Seed: 1,
	}
}

// SyntheticSource generates sweeps of the configured scene. Time advances
// by one sample period per node, so output is deterministic for a seed.
type SyntheticSource struct {
	cfg  SyntheticConfig
	rng  *rand.Rand
	step int64

	start time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyntheticSource creates a generator. Zero config fields take the
// defaults of DefaultSyntheticConfig; Visitors is used as given.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	def := DefaultSyntheticConfig()
	if cfg.SamplesPerRotation <= 0 {
		cfg.SamplesPerRotation = def.SamplesPerRotation
	}
	if cfg.RotationHz <= 0 {
		cfg.RotationHz = def.RotationHz
	}
	if cfg.BackgroundCm <= 0 {
		cfg.BackgroundCm = def.BackgroundCm
	}
	return &SyntheticSource{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		sleep: sleepCtx,
	}
}

// Next returns the next node of the current sweep. The first node of each
// sweep carries the start flag.
func (s *SyntheticSource) Next(ctx context.Context) (Node, error) {
	if err := ctx.Err(); err != nil {
		return Node{}, err
	}
	n := s.cfg.SamplesPerRotation
	idx := int(s.step % int64(n))
	if idx == 0 && s.cfg.Realtime {
		if err := s.waitForRotation(ctx); err != nil {
			return Node{}, err
		}
	}

	t := s.Elapsed().Seconds()
	angle := float64(idx) * 360 / float64(n)
	dist := s.rangeAt(angle, t)

	quality := uint8(47)
	if s.cfg.DropoutRate > 0 && s.rng.Float64() < s.cfg.DropoutRate {
		quality = 0
	}
	if s.cfg.NoiseCm > 0 {
		dist += (s.rng.Float64()*2 - 1) * s.cfg.NoiseCm
	}
	s.step++
	return NodeAt(angle, dist, quality, idx == 0), nil
}

// Elapsed returns the scene time of the next node.
func (s *SyntheticSource) Elapsed() time.Duration {
	secs := float64(s.step) / (s.cfg.RotationHz * float64(s.cfg.SamplesPerRotation))
	return time.Duration(secs * float64(time.Second))
}

// rangeAt casts a ray at angle and returns the nearest hit.
func (s *SyntheticSource) rangeAt(angle, t float64) float64 {
	best := s.cfg.BackgroundCm
	rad := angle * math.Pi / 180
	dx, dy := math.Cos(rad), math.Sin(rad)
	for _, v := range s.cfg.Visitors {
		c := v.position(t)
		along := c.X*dx + c.Y*dy
		if along <= 0 {
			continue
		}
		perp := math.Abs(c.X*dy - c.Y*dx)
		if perp >= v.BodyRadius {
			continue
		}
		if hit := along - math.Sqrt(v.BodyRadius*v.BodyRadius-perp*perp); hit > 0 && hit < best {
			best = hit
		}
	}
	return best
}

func (s *SyntheticSource) waitForRotation(ctx context.Context) error {
	if s.start.IsZero() {
		s.start = time.Now()
		return nil
	}
	return s.sleep(ctx, time.Until(s.start.Add(s.Elapsed())))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close does nothing.
func (s *SyntheticSource) Close() error { return nil }
