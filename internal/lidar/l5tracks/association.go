package l5tracks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
)

// MatchMode selects how cluster centroids are paired with tracked objects.
type MatchMode int

const (
	// MatchFirst pairs each cluster, in segmentation order, with the first
	// object in insertion order whose position lies within the gate. An
	// object may absorb several clusters in one rotation, and objects
	// spawned earlier in the same rotation are candidates too.
	MatchFirst MatchMode = iota
	// MatchNearest pairs globally closest (cluster, object) couples first.
	// Each side is used at most once.
	MatchNearest
	// MatchOptimal minimises the summed centroid distance with the
	// Hungarian algorithm. Each side is used at most once.
	MatchOptimal
)

func (m MatchMode) String() string {
	switch m {
	case MatchFirst:
		return "first"
	case MatchNearest:
		return "nearest"
	case MatchOptimal:
		return "optimal"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// ParseMatchMode parses the names produced by MatchMode.String.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "":
		return MatchFirst, nil
	case "nearest":
		return MatchNearest, nil
	case "optimal", "hungarian":
		return MatchOptimal, nil
	default:
		return MatchFirst, fmt.Errorf("unknown match mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m MatchMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MatchMode) UnmarshalText(b []byte) error {
	v, err := ParseMatchMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// firstMatch returns the index of the first object within gate of c, or -1.
func firstMatch(objects []*TrackedObject, c l4perception.Point, gate float64) int {
	for i, o := range objects {
		if l4perception.Distance(o.Point(), c) <= gate {
			return i
		}
	}
	return -1
}

type pairing struct {
	cluster, object int
	dist            float64
}

// nearestAssign pairs centroids with objects greedily by ascending distance.
// Ties keep cluster order then object order. Returns assign[ci] = object
// index or -1.
func nearestAssign(objects []*TrackedObject, centroids []l4perception.Point, gate float64) []int {
	assign := make([]int, len(centroids))
	for i := range assign {
		assign[i] = -1
	}

	var pairs []pairing
	for ci, c := range centroids {
		for oi, o := range objects {
			if d := l4perception.Distance(o.Point(), c); d <= gate {
				pairs = append(pairs, pairing{cluster: ci, object: oi, dist: d})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].dist < pairs[b].dist })

	used := make([]bool, len(objects))
	for _, p := range pairs {
		if assign[p.cluster] >= 0 || used[p.object] {
			continue
		}
		assign[p.cluster] = p.object
		used[p.object] = true
	}
	return assign
}

// optimalAssign pairs centroids with objects minimising the total distance
// over pairs within gate. Returns assign[ci] = object index or -1.
func optimalAssign(objects []*TrackedObject, centroids []l4perception.Point, gate float64) []int {
	if len(objects) == 0 {
		assign := make([]int, len(centroids))
		for i := range assign {
			assign[i] = -1
		}
		return assign
	}
	cost := make([][]float64, len(centroids))
	for ci, c := range centroids {
		cost[ci] = make([]float64, len(objects))
		for oi, o := range objects {
			d := l4perception.Distance(o.Point(), c)
			if d > gate {
				d = hungarianInf
			}
			cost[ci][oi] = d
		}
	}
	assign := HungarianAssign(cost)
	if assign == nil {
		assign = []int{}
	}
	return assign
}
