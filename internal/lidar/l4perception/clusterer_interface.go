package l4perception

// Clusterer abstracts the partitioning strategy so the segmenter can swap
// algorithms at runtime without touching filtering or projection.
type Clusterer interface {
	// Cluster partitions points into clusters of at least MinPts points.
	// Points that belong to no cluster are dropped.
	Cluster(points []Point) []Cluster

	// GetParams returns the current clustering parameters.
	GetParams() ClusteringParams

	// SetParams updates the clustering parameters.
	SetParams(params ClusteringParams)
}

// ClusteringParams holds clustering algorithm parameters shared by both
// strategies. Eps is the connected pass's absorb radius and DBSCAN's
// neighbourhood radius.
type ClusteringParams struct {
	Eps    float64 // Neighbourhood radius in centimetres
	MinPts int     // Minimum points to keep a cluster
}

func (p ClusteringParams) minPts() int {
	if p.MinPts < 1 {
		return 1
	}
	return p.MinPts
}
