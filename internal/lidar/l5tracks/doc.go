// Package l5tracks owns Layer 5 (Tracks) of the LiDAR data model.
//
// Responsibilities: matching clusters to tracked objects across
// rotations, output channel allocation, note and modulation mapping,
// and object lifecycle (creation, update, removal).
// Key types: Tracker, TrackedObject, ChannelPool.
//
// Dependency rule: L5 may depend on L1-L4. Transport lives behind the
// Output interface; no MIDI driver or SQL code is allowed in this package.
package l5tracks
