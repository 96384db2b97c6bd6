package l4perception

// ConnectedClusterer implements the greedy single-link pass: each unvisited
// point seeds a group and absorbs every later unvisited point within Eps of
// the seed. Distances are measured to the seed only, so the result depends
// on point order and is not the transitive closure. This bounds the pass
// to O(n²) with no second sweep.
type ConnectedClusterer struct {
	params ClusteringParams
}

// NewConnectedClusterer creates a connected-pass clusterer.
func NewConnectedClusterer(eps float64, minPts int) *ConnectedClusterer {
	return &ConnectedClusterer{params: ClusteringParams{Eps: eps, MinPts: minPts}}
}

// Cluster runs one greedy pass over points in order.
func (c *ConnectedClusterer) Cluster(points []Point) []Cluster {
	if len(points) == 0 {
		return nil
	}
	minPts := c.params.minPts()
	visited := make([]bool, len(points))
	var clusters []Cluster

	for i := range points {
		if visited[i] {
			continue
		}
		visited[i] = true
		group := []Point{points[i]}
		for j := i + 1; j < len(points); j++ {
			if visited[j] {
				continue
			}
			if Distance(points[i], points[j]) <= c.params.Eps {
				group = append(group, points[j])
				visited[j] = true
			}
		}
		if len(group) >= minPts {
			clusters = append(clusters, Cluster{ID: len(clusters) + 1, Points: group})
		}
	}
	return clusters
}

// GetParams returns the current clustering parameters.
func (c *ConnectedClusterer) GetParams() ClusteringParams { return c.params }

// SetParams updates the clustering parameters.
func (c *ConnectedClusterer) SetParams(params ClusteringParams) { c.params = params }

var _ Clusterer = (*ConnectedClusterer)(nil)
