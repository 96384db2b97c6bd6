package l1packets

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
)

// Request and response framing bytes.
const (
	SyncByte      = 0xA5
	ResponseSync2 = 0x5A

	CmdStop  = 0x25
	CmdReset = 0x40
	CmdScan  = 0x20

	// NodeSize is the length of one standard-scan measurement node.
	NodeSize = 5

	// ScanResponseType is the data type byte of a scan response descriptor.
	ScanResponseType = 0x81
)

// Send modes carried in a response descriptor.
const (
	SendModeSingle   = 0x0
	SendModeMultiple = 0x1
)

var (
	// ErrBadNode marks five bytes that are not a valid measurement node.
	ErrBadNode = errors.New("l1packets: invalid measurement node")
	// ErrBadDescriptor marks a malformed or unexpected response descriptor.
	ErrBadDescriptor = errors.New("l1packets: invalid response descriptor")
)

// ScanCommand returns the request that starts a standard scan.
func ScanCommand() []byte { return []byte{SyncByte, CmdScan} }

// StopCommand returns the request that ends a scan.
func StopCommand() []byte { return []byte{SyncByte, CmdStop} }

// ResetCommand returns the request that reboots the sensor core.
func ResetCommand() []byte { return []byte{SyncByte, CmdReset} }

// Descriptor is the 7-byte header the sensor sends before response data.
type Descriptor struct {
	Length   uint32 // 30 bits: bytes per response
	SendMode uint8  // 2 bits
	DataType uint8
}

// DecodeDescriptor parses a response descriptor.
func DecodeDescriptor(b [7]byte) (Descriptor, error) {
	if b[0] != SyncByte || b[1] != ResponseSync2 {
		return Descriptor{}, fmt.Errorf("%w: sync bytes %#02x %#02x", ErrBadDescriptor, b[0], b[1])
	}
	word := uint32(b[2]) | uint32(b[3])<<8 | uint32(b[4])<<16 | uint32(b[5])<<24
	return Descriptor{
		Length:   word & 0x3FFFFFFF,
		SendMode: uint8(word >> 30),
		DataType: b[6],
	}, nil
}

// Bytes encodes the descriptor.
func (d Descriptor) Bytes() [7]byte {
	word := d.Length&0x3FFFFFFF | uint32(d.SendMode)<<30
	return [7]byte{SyncByte, ResponseSync2, byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24), d.DataType}
}

// ValidateScan checks that d announces a stream of standard-scan nodes.
func (d Descriptor) ValidateScan() error {
	if d.Length != NodeSize || d.SendMode != SendModeMultiple || d.DataType != ScanResponseType {
		return fmt.Errorf("%w: got len=%d mode=%d type=%#02x, want scan stream", ErrBadDescriptor, d.Length, d.SendMode, d.DataType)
	}
	return nil
}

// ScanDescriptor is what a sensor answers to ScanCommand.
func ScanDescriptor() Descriptor {
	return Descriptor{Length: NodeSize, SendMode: SendModeMultiple, DataType: ScanResponseType}
}

// ReadDescriptor reads and decodes one descriptor from r.
func ReadDescriptor(r io.Reader) (Descriptor, error) {
	var b [7]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Descriptor{}, fmt.Errorf("read response descriptor: %w", err)
	}
	return DecodeDescriptor(b)
}

// Node is one standard-scan measurement.
type Node struct {
	StartFlag  bool   // first node of a new 360° sweep
	Quality    uint8  // 6 bits; 0 means no return
	AngleQ6    uint16 // degrees × 64, 15 bits
	DistanceQ2 uint16 // millimetres × 4; 0 means no return
}

// DecodeNode parses five bytes. The start flag and its inverse must
// differ and the check bit must be set.
func DecodeNode(b [NodeSize]byte) (Node, error) {
	start := b[0]&0x01 != 0
	inverse := b[0]&0x02 != 0
	if start == inverse {
		return Node{}, fmt.Errorf("%w: start flag bits %02b", ErrBadNode, b[0]&0x03)
	}
	if b[1]&0x01 == 0 {
		return Node{}, fmt.Errorf("%w: check bit clear", ErrBadNode)
	}
	return Node{
		StartFlag:  start,
		Quality:    b[0] >> 2,
		AngleQ6:    uint16(b[1])>>1 | uint16(b[2])<<7,
		DistanceQ2: uint16(b[3]) | uint16(b[4])<<8,
	}, nil
}

// Bytes encodes the node in wire form.
func (n Node) Bytes() [NodeSize]byte {
	var b [NodeSize]byte
	b[0] = n.Quality<<2 | 0x02
	if n.StartFlag {
		b[0] = n.Quality<<2 | 0x01
	}
	b[1] = byte(n.AngleQ6<<1) | 0x01
	b[2] = byte(n.AngleQ6 >> 7)
	b[3] = byte(n.DistanceQ2)
	b[4] = byte(n.DistanceQ2 >> 8)
	return b
}

// Angle returns the heading in degrees.
func (n Node) Angle() float64 { return float64(n.AngleQ6) / 64 }

// DistanceCm returns the range in centimetres.
func (n Node) DistanceCm() float64 { return float64(n.DistanceQ2) / 4 / 10 }

// Sample converts the node into the polar sample segmentation consumes.
func (n Node) Sample() l4perception.PolarSample {
	return l4perception.PolarSample{
		Angle:      n.Angle(),
		Distance:   n.DistanceCm(),
		Quality:    n.Quality,
		HasQuality: true,
	}
}

// NodeAt builds a node for the given heading and range, rounding to the
// wire resolution. Out-of-range inputs saturate.
func NodeAt(angleDeg, distanceCm float64, quality uint8, start bool) Node {
	q6 := angleDeg * 64
	if q6 < 0 {
		q6 = 0
	}
	if q6 > 0x7FFF {
		q6 = 0x7FFF
	}
	q2 := distanceCm * 40
	if q2 < 0 {
		q2 = 0
	}
	if q2 > 0xFFFF {
		q2 = 0xFFFF
	}
	if quality > 0x3F {
		quality = 0x3F
	}
	return Node{StartFlag: start, Quality: quality, AngleQ6: uint16(q6 + 0.5), DistanceQ2: uint16(q2 + 0.5)}
}
