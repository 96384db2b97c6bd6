// Package l1packets owns Layer 1 (Packets) of the LiDAR data model.
//
// Responsibilities: the RPLIDAR serial protocol (request packets, response
// descriptors, standard-scan measurement nodes), stream resynchronisation,
// and node sources: a serial port, a PCAP capture replayed from disk, and
// a synthetic sweep for benches without hardware.
//
// Dependency rule: L1 has no inward dependencies on higher layers. The
// only exception is Node.Sample, which yields the shared polar sample
// type consumed by L2.
package l1packets
