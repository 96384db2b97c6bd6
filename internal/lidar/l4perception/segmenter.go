package l4perception

// Default segmentation parameters (centimetres).
const (
	DefaultMaxDistance        = 150.0
	DefaultMaxClusterDistance = 70.0
	DefaultMinPoints          = 2
)

// SegmentParams configures one segmentation pass.
type SegmentParams struct {
	MaxDistance        float64  // Samples further than this are dropped
	MaxClusterDistance float64  // Connected absorb radius / DBSCAN eps
	MinPoints          int      // Minimum points per kept cluster
	Mode               ScanMode // Partitioning strategy
}

// DefaultSegmentParams returns the parameters the installation ships with.
func DefaultSegmentParams() SegmentParams {
	return SegmentParams{
		MaxDistance:        DefaultMaxDistance,
		MaxClusterDistance: DefaultMaxClusterDistance,
		MinPoints:          DefaultMinPoints,
		Mode:               ScanConnected,
	}
}

func (p SegmentParams) clustering() ClusteringParams {
	return ClusteringParams{Eps: p.MaxClusterDistance, MinPts: p.MinPoints}
}

// SegmentStats describes the most recent segmentation pass.
type SegmentStats struct {
	Samples   int `json:"samples"`   // Samples handed in
	Filtered  int `json:"filtered"`  // Samples rejected for range or quality
	Points    int `json:"points"`    // Points passed to the clusterer
	Clustered int `json:"clustered"` // Points that ended up in a kept cluster
}

// Segmenter turns one rotation of polar samples into clusters.
type Segmenter struct {
	params    SegmentParams
	connected *ConnectedClusterer
	density   *DBSCANClusterer

	clusters []Cluster
	points   []Point
	stats    SegmentStats
}

// NewSegmenter creates a segmenter with the given parameters.
func NewSegmenter(params SegmentParams) *Segmenter {
	cp := params.clustering()
	return &Segmenter{
		params:    params,
		connected: NewConnectedClusterer(cp.Eps, cp.MinPts),
		density:   NewDBSCANClusterer(cp.Eps, cp.MinPts),
	}
}

// Params returns the current parameters.
func (s *Segmenter) Params() SegmentParams { return s.params }

// SetParams replaces the parameters used by subsequent passes.
func (s *Segmenter) SetParams(params SegmentParams) {
	s.params = params
	cp := params.clustering()
	s.connected.SetParams(cp)
	s.density.SetParams(cp)
}

func (s *Segmenter) clusterer() Clusterer {
	if s.params.Mode == ScanDensity {
		return s.density
	}
	return s.connected
}

// Segment filters, projects and partitions samples. The previous result is
// discarded before the new one is built. The returned slice is owned by the
// segmenter until the next call.
func (s *Segmenter) Segment(samples []PolarSample) []Cluster {
	s.clusters = s.clusters[:0]
	s.points = s.points[:0]
	s.stats = SegmentStats{Samples: len(samples)}

	for _, sample := range samples {
		if !sample.Usable(s.params.MaxDistance) {
			s.stats.Filtered++
			continue
		}
		s.points = append(s.points, sample.Point())
	}
	s.stats.Points = len(s.points)

	s.clusters = append(s.clusters, s.clusterer().Cluster(s.points)...)
	for _, c := range s.clusters {
		s.stats.Clustered += len(c.Points)
	}
	return s.clusters
}

// Clusters returns the result of the most recent pass.
func (s *Segmenter) Clusters() []Cluster { return s.clusters }

// Stats returns counters for the most recent pass.
func (s *Segmenter) Stats() SegmentStats { return s.stats }
