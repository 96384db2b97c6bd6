package l1packets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/lidarsynth/internal/monitoring"
)

// DefaultUDPPort is the port PcapWriter tags captured node payloads with.
const DefaultUDPPort = 2368

// PcapConfig controls capture replay.
type PcapConfig struct {
	// UDPPort keeps only datagrams to or from this port. 0 accepts any.
	UDPPort int
	// SpeedMultiplier paces replay against capture timestamps (1.0 is
	// real time, 2.0 twice as fast). 0 replays as fast as possible.
	SpeedMultiplier float64
}

// PcapSource replays nodes carried as UDP payloads in a pcap capture.
// Each payload holds whole 5-byte nodes back to back.
type PcapSource struct {
	cfg    PcapConfig
	r      *pcapgo.Reader
	closer io.Closer

	pending []Node
	lastTS  time.Time

	packets int64
	skipped int64
}

// OpenPcap opens a capture file for replay.
func OpenPcap(path string, cfg PcapConfig) (*PcapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	src, err := NewPcapSource(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	monitoring.Logf("PCAP replay: %s (port %d, speed %.1fx)", path, cfg.UDPPort, cfg.SpeedMultiplier)
	return src, nil
}

// NewPcapSource reads a capture from r.
func NewPcapSource(r io.Reader, cfg PcapConfig) (*PcapSource, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}
	return &PcapSource{cfg: cfg, r: pr}, nil
}

// Next returns the next node, reading further packets as needed. io.EOF
// marks the end of the capture.
func (s *PcapSource) Next(ctx context.Context) (Node, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return Node{}, err
		}
		if err := s.readPacket(ctx); err != nil {
			return Node{}, err
		}
	}
	n := s.pending[0]
	s.pending = s.pending[1:]
	return n, nil
}

func (s *PcapSource) readPacket(ctx context.Context) error {
	data, ci, err := s.r.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			monitoring.Logf("PCAP replay complete: %d packets", s.packets)
			return io.EOF
		}
		return fmt.Errorf("read pcap packet: %w", err)
	}

	packet := gopacket.NewPacket(data, s.r.LinkType(), gopacket.Default)
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil
	}
	if s.cfg.UDPPort != 0 && int(udp.DstPort) != s.cfg.UDPPort && int(udp.SrcPort) != s.cfg.UDPPort {
		return nil
	}
	if len(udp.Payload) == 0 {
		return nil
	}

	if err := s.pace(ctx, ci.Timestamp); err != nil {
		return err
	}
	s.packets++

	payload := udp.Payload
	for len(payload) >= NodeSize {
		var b [NodeSize]byte
		copy(b[:], payload[:NodeSize])
		payload = payload[NodeSize:]
		n, err := DecodeNode(b)
		if err != nil {
			s.skipped += NodeSize
			continue
		}
		s.pending = append(s.pending, n)
	}
	s.skipped += int64(len(payload))
	return nil
}

// pace sleeps for the scaled gap between this packet and the previous one.
func (s *PcapSource) pace(ctx context.Context, ts time.Time) error {
	defer func() { s.lastTS = ts }()
	if s.cfg.SpeedMultiplier <= 0 || s.lastTS.IsZero() {
		return nil
	}
	return sleepCtx(ctx, time.Duration(float64(ts.Sub(s.lastTS))/s.cfg.SpeedMultiplier))
}

// Packets returns how many node-bearing datagrams have been read.
func (s *PcapSource) Packets() int64 { return s.packets }

// Skipped returns how many payload bytes did not decode as nodes.
func (s *PcapSource) Skipped() int64 { return s.skipped }

// Close closes the underlying file, if OpenPcap opened one.
func (s *PcapSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// PcapWriter records nodes as UDP datagrams on loopback Ethernet frames so
// that a live session can be replayed later with PcapSource.
type PcapWriter struct {
	w    *pcapgo.Writer
	port layers.UDPPort
	ip   *layers.IPv4
	eth  *layers.Ethernet
}

// NewPcapWriter writes a pcap file header to w. A zero port selects
// DefaultUDPPort.
func NewPcapWriter(w io.Writer, port int) (*PcapWriter, error) {
	if port == 0 {
		port = DefaultUDPPort
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &PcapWriter{
		w:    pw,
		port: layers.UDPPort(port),
		eth: &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
			EthernetType: layers.EthernetTypeIPv4,
		},
		ip: &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(127, 0, 0, 1),
			DstIP:    net.IPv4(127, 0, 0, 1),
		},
	}, nil
}

// WriteNodes writes one datagram carrying nodes, stamped ts.
func (pw *PcapWriter) WriteNodes(ts time.Time, nodes []Node) error {
	payload := make([]byte, 0, len(nodes)*NodeSize)
	for _, n := range nodes {
		b := n.Bytes()
		payload = append(payload, b[:]...)
	}

	udp := &layers.UDP{SrcPort: pw.port, DstPort: pw.port}
	if err := udp.SetNetworkLayerForChecksum(pw.ip); err != nil {
		return err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, pw.eth, pw.ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize datagram: %w", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
	return pw.w.WritePacket(ci, data)
}

// TeeSource passes nodes through from src and records them to w in
// datagrams of batch nodes.
type TeeSource struct {
	src   Source
	w     *PcapWriter
	batch int
	now   func() time.Time
	buf   []Node
}

// NewTeeSource wraps src. batch <= 0 selects 100 nodes per datagram.
func NewTeeSource(src Source, w *PcapWriter, batch int) *TeeSource {
	if batch <= 0 {
		batch = 100
	}
	return &TeeSource{src: src, w: w, batch: batch, now: time.Now}
}

// Next returns src's next node after queueing it for the capture.
func (t *TeeSource) Next(ctx context.Context) (Node, error) {
	n, err := t.src.Next(ctx)
	if err != nil {
		return n, err
	}
	t.buf = append(t.buf, n)
	if len(t.buf) >= t.batch {
		if werr := t.flush(); werr != nil {
			monitoring.Logf("[TeeSource] capture write failed: %v", werr)
		}
	}
	return n, nil
}

func (t *TeeSource) flush() error {
	if len(t.buf) == 0 {
		return nil
	}
	err := t.w.WriteNodes(t.now(), t.buf)
	t.buf = t.buf[:0]
	return err
}

// Close flushes buffered nodes and closes src.
func (t *TeeSource) Close() error {
	ferr := t.flush()
	if err := t.src.Close(); err != nil {
		return err
	}
	return ferr
}
