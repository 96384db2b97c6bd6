package l4perception

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Cluster is a spatial grouping of points believed to be one physical object.
// ID is positive and unique within one rotation's segmentation result.
type Cluster struct {
	ID     int
	Points []Point
}

// Centroid returns the arithmetic mean of the cluster's points.
// An empty cluster has a zero centroid.
func (c Cluster) Centroid() Point {
	if len(c.Points) == 0 {
		return Point{}
	}
	xs := make([]float64, len(c.Points))
	ys := make([]float64, len(c.Points))
	for i, p := range c.Points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}

// Size returns the number of points in the cluster.
func (c Cluster) Size() int { return len(c.Points) }

// ScanMode selects the segmentation strategy.
type ScanMode int

const (
	// ScanConnected groups points with a single greedy single-link pass.
	ScanConnected ScanMode = iota
	// ScanDensity groups points with DBSCAN.
	ScanDensity
)

func (m ScanMode) String() string {
	switch m {
	case ScanConnected:
		return "connected"
	case ScanDensity:
		return "density"
	default:
		return fmt.Sprintf("ScanMode(%d)", int(m))
	}
}

// ParseScanMode accepts the names produced by ScanMode.String plus the
// aliases "dbscan" and "distance".
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "connected", "distance", "":
		return ScanConnected, nil
	case "density", "dbscan":
		return ScanDensity, nil
	default:
		return ScanConnected, fmt.Errorf("unknown scan mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ScanMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ScanMode) UnmarshalText(b []byte) error {
	v, err := ParseScanMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
