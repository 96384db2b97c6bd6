// Package l2frames owns Layer 2 (Frames) of the LiDAR data model.
//
// Responsibilities: assembling decoded samples into complete rotations
// and handing them to the tracker without allocating per rotation.
// Key types: RotationBuffer.
//
// Dependency rule: L2 may depend on L1 and the shared sample type in L4
// perception, but never on L5+.
package l2frames
