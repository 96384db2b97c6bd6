package l4perception

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blob returns n points spread on a small circle around (cx, cy).
func blob(cx, cy, radius float64, n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{X: cx + radius*math.Cos(theta), Y: cy + radius*math.Sin(theta)}
	}
	return pts
}

func TestCluster_Centroid(t *testing.T) {
	c := Cluster{Points: []Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 4}, {X: 0, Y: 4}}}
	got := c.Centroid()
	assert.InDelta(t, 1.0, got.X, 1e-9)
	assert.InDelta(t, 2.0, got.Y, 1e-9)
	assert.Equal(t, Point{}, Cluster{}.Centroid())
}

func TestConnectedClusterer_TwoBlobs(t *testing.T) {
	pts := append(blob(0, 0, 2, 8), blob(100, 100, 2, 6)...)
	c := NewConnectedClusterer(10, 3)

	clusters := c.Cluster(pts)
	require.Len(t, clusters, 2)
	assert.Equal(t, 8, clusters[0].Size())
	assert.Equal(t, 6, clusters[1].Size())
	assert.Equal(t, 1, clusters[0].ID)
	assert.Equal(t, 2, clusters[1].ID)
}

func TestConnectedClusterer_DropsSmallGroups(t *testing.T) {
	pts := append(blob(0, 0, 1, 5), Point{X: 500, Y: 500})
	clusters := NewConnectedClusterer(10, 2).Cluster(pts)
	require.Len(t, clusters, 1)
	assert.Equal(t, 5, clusters[0].Size())
}

// A chain of points spaced just under eps is not merged transitively: only
// points within eps of the seed are absorbed.
func TestConnectedClusterer_SeedOnlyAbsorb(t *testing.T) {
	pts := []Point{{X: 0}, {X: 8}, {X: 16}, {X: 24}}
	clusters := NewConnectedClusterer(10, 1).Cluster(pts)

	require.Len(t, clusters, 2)
	assert.Equal(t, []Point{{X: 0}, {X: 8}}, clusters[0].Points)
	assert.Equal(t, []Point{{X: 16}, {X: 24}}, clusters[1].Points)
}

// The greedy pass is order dependent; reversing input changes grouping.
func TestConnectedClusterer_OrderDependent(t *testing.T) {
	pts := []Point{{X: 0}, {X: 9}, {X: 18}}
	forward := NewConnectedClusterer(10, 1).Cluster(pts)
	reversed := NewConnectedClusterer(10, 1).Cluster([]Point{{X: 9}, {X: 0}, {X: 18}})

	assert.Len(t, forward, 2)
	assert.Len(t, reversed, 1)
}

func TestConnectedClusterer_Empty(t *testing.T) {
	assert.Nil(t, NewConnectedClusterer(10, 2).Cluster(nil))
}

func TestDBSCAN_TransitiveChain(t *testing.T) {
	// Unlike the connected pass, DBSCAN follows dense chains.
	pts := []Point{{X: 0}, {X: 8}, {X: 16}, {X: 24}, {X: 32}}
	clusters := NewDBSCANClusterer(10, 2).Cluster(pts)
	require.Len(t, clusters, 1)
	assert.Equal(t, 5, clusters[0].Size())
}

func TestDBSCAN_NoiseDropped(t *testing.T) {
	pts := append(blob(0, 0, 2, 10), Point{X: 300, Y: 0}, Point{X: -300, Y: 40})
	labels := DBSCANLabels(pts, ClusteringParams{Eps: 5, MinPts: 3})

	assert.Equal(t, labelNoise, labels[10])
	assert.Equal(t, labelNoise, labels[11])
	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, labels[i], "point %d", i)
	}

	clusters := NewDBSCANClusterer(5, 3).Cluster(pts)
	require.Len(t, clusters, 1)
	assert.Equal(t, 10, clusters[0].Size())
}

func TestDBSCAN_NoiseReclassifiedAsBorder(t *testing.T) {
	// Index 0 is visited first and has too few neighbours to be a core point,
	// so it is marked noise, then absorbed when the dense core expands.
	pts := []Point{{X: -9, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	labels := DBSCANLabels(pts, ClusteringParams{Eps: 9.5, MinPts: 4})
	for i, l := range labels {
		assert.Equal(t, 1, l, "point %d", i)
	}
}

func TestDBSCAN_NegativeCoordinates(t *testing.T) {
	pts := append(blob(-50, -50, 1, 6), blob(50, -50, 1, 6)...)
	clusters := NewDBSCANClusterer(3, 3).Cluster(pts)
	require.Len(t, clusters, 2)
	assert.InDelta(t, -50, clusters[0].Centroid().X, 1e-6)
	assert.InDelta(t, 50, clusters[1].Centroid().X, 1e-6)
}

func TestClusterers_MinimumSize(t *testing.T) {
	pts := []Point{}
	for i := 0; i < 40; i++ {
		pts = append(pts, Point{X: float64(i*i%97) * 3, Y: float64(i*7%31) * 3})
	}
	for _, minPts := range []int{1, 2, 3, 5, 8} {
		for _, c := range []Clusterer{NewConnectedClusterer(12, minPts), NewDBSCANClusterer(12, minPts)} {
			for _, cl := range c.Cluster(pts) {
				if cl.Size() < minPts {
					t.Errorf("%T minPts=%d produced cluster of %d", c, minPts, cl.Size())
				}
			}
		}
	}
}

func TestSpatialIndex_RegionQueryIncludesSelf(t *testing.T) {
	pts := []Point{{X: 0.5, Y: 0.5}, {X: 1.2, Y: 0.5}, {X: 9, Y: 9}}
	si := NewSpatialIndex(1)
	si.Build(pts)
	got := si.RegionQuery(pts, 0, 1)
	assert.ElementsMatch(t, []int{0, 1}, got)
}

func TestParseScanMode(t *testing.T) {
	for in, want := range map[string]ScanMode{
		"connected": ScanConnected,
		"distance":  ScanConnected,
		"density":   ScanDensity,
		"DBSCAN":    ScanDensity,
	} {
		got, err := ParseScanMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseScanMode("kmeans")
	assert.Error(t, err)

	var m ScanMode
	require.NoError(t, m.UnmarshalText([]byte("density")))
	assert.Equal(t, ScanDensity, m)
	b, _ := m.MarshalText()
	assert.Equal(t, "density", string(b))
}
