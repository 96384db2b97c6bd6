// Package l4perception owns Layer 4 (Perception) of the range-sensor data model.
//
// Responsibilities: polar-to-Cartesian conversion of one rotation's samples,
// range/quality filtering, and segmentation of the resulting points into
// clusters using either a greedy connected pass or DBSCAN.
// Key types: PolarSample, Point, Cluster, Segmenter.
//
// Dependency rule: L4 may depend on L1-L2, but never on L5+.
// The segmenter owns no cross-rotation state beyond its parameters.
package l4perception
