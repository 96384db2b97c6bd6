package l4perception

import "math"

// DBSCAN point labels.
const (
	labelUnclassified = 0
	labelNoise        = -1
)

// SpatialIndex provides neighbour queries using a regular grid.
// Cell size should match the DBSCAN eps parameter so a 3x3 block of
// cells covers every candidate neighbour.
type SpatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // Cell ID → point indices
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[int64][]int),
	}
}

// Build populates the spatial index from a set of points.
func (si *SpatialIndex) Build(points []Point) {
	si.Grid = make(map[int64][]int, len(points))
	for i, p := range points {
		cx, cy := si.cell(p)
		id := cellID(cx, cy)
		si.Grid[id] = append(si.Grid[id], i)
	}
}

func (si *SpatialIndex) cell(p Point) (int64, int64) {
	return int64(math.Floor(p.X / si.CellSize)), int64(math.Floor(p.Y / si.CellSize))
}

// cellID pairs two signed cell coordinates into one key using zigzag
// encoding followed by Szudzik's pairing function.
func cellID(cellX, cellY int64) int64 {
	zig := func(v int64) int64 {
		if v >= 0 {
			return 2 * v
		}
		return -2*v - 1
	}
	a, b := zig(cellX), zig(cellY)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// RegionQuery returns indices of all points within eps of points[idx],
// including idx itself.
func (si *SpatialIndex) RegionQuery(points []Point, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	cx, cy := si.cell(p)

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, candidateIdx := range si.Grid[cellID(cx+dx, cy+dy)] {
				c := points[candidateIdx]
				ddx := c.X - p.X
				ddy := c.Y - p.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}
	return neighbors
}

// DBSCANClusterer implements Clusterer using density-based clustering.
type DBSCANClusterer struct {
	params ClusteringParams
}

// NewDBSCANClusterer creates a new DBSCAN clusterer with the specified parameters.
func NewDBSCANClusterer(eps float64, minPts int) *DBSCANClusterer {
	return &DBSCANClusterer{params: ClusteringParams{Eps: eps, MinPts: minPts}}
}

// Cluster performs DBSCAN over points. Clusters are returned in order of
// discovery; noise and unclassified points are dropped.
func (c *DBSCANClusterer) Cluster(points []Point) []Cluster {
	if len(points) == 0 {
		return nil
	}
	labels := DBSCANLabels(points, c.params)
	return buildClusters(points, labels, c.params.minPts())
}

// GetParams returns the current clustering parameters.
func (c *DBSCANClusterer) GetParams() ClusteringParams { return c.params }

// SetParams updates the clustering parameters.
func (c *DBSCANClusterer) SetParams(params ClusteringParams) { c.params = params }

var _ Clusterer = (*DBSCANClusterer)(nil)

// DBSCANLabels classifies every point: 0 = unclassified, -1 = noise,
// >0 = cluster id.
func DBSCANLabels(points []Point, params ClusteringParams) []int {
	n := len(points)
	labels := make([]int, n)
	if n == 0 {
		return labels
	}
	minPts := params.minPts()

	// A zero eps would make every cell key collide on NaN/Inf floors.
	cellSize := params.Eps
	if cellSize <= 0 {
		cellSize = 1
	}
	si := NewSpatialIndex(cellSize)
	si.Build(points)

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != labelUnclassified {
			continue
		}
		neighbors := si.RegionQuery(points, i, params.Eps)
		if len(neighbors) < minPts {
			labels[i] = labelNoise
			continue
		}
		clusterID++
		expandCluster(points, si, labels, i, neighbors, clusterID, params.Eps, minPts)
	}
	return labels
}

// expandCluster grows a cluster from a core point using a work queue.
func expandCluster(points []Point, si *SpatialIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, eps float64, minPts int) {

	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == labelNoise {
			labels[idx] = clusterID // noise becomes a border point
		}
		if labels[idx] != labelUnclassified {
			continue
		}

		labels[idx] = clusterID
		newNeighbors := si.RegionQuery(points, idx, eps)
		if len(newNeighbors) >= minPts {
			neighbors = append(neighbors, newNeighbors...)
		}
	}
}

// buildClusters groups labelled points by cluster id. A cluster whose
// border points were claimed first by an earlier cluster can end up short,
// so the minimum size is enforced again here.
func buildClusters(points []Point, labels []int, minPts int) []Cluster {
	maxID := 0
	for _, l := range labels {
		if l > maxID {
			maxID = l
		}
	}
	if maxID == 0 {
		return nil
	}

	grouped := make([][]Point, maxID+1)
	for i, l := range labels {
		if l > 0 {
			grouped[l] = append(grouped[l], points[i])
		}
	}

	clusters := make([]Cluster, 0, maxID)
	for id := 1; id <= maxID; id++ {
		if len(grouped[id]) < minPts {
			continue
		}
		clusters = append(clusters, Cluster{ID: id, Points: grouped[id]})
	}
	return clusters
}
