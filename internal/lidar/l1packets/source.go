package l1packets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Source yields measurement nodes in sweep order.
type Source interface {
	// Next blocks until a node is available, the context is done, or the
	// source is exhausted (io.EOF).
	Next(ctx context.Context) (Node, error)
	Close() error
}

// errReadTimeout is returned by a transport read that expired without data.
var errReadTimeout = errors.New("l1packets: read timeout")

// StreamSource reads nodes from a command/response byte stream such as a
// serial port.
type StreamSource struct {
	rwc io.ReadWriteCloser
	nr  *NodeReader

	closeOnce sync.Once
	closeErr  error
}

// NewStreamSource wraps rwc. Call StartScan before Next when talking to a
// real sensor; a recorded stream of bare nodes can be read directly.
func NewStreamSource(rwc io.ReadWriteCloser) *StreamSource {
	return &StreamSource{rwc: rwc, nr: NewNodeReader(rwc)}
}

// StartScan sends the scan request and checks the response descriptor.
func (s *StreamSource) StartScan(ctx context.Context) error {
	if _, err := s.rwc.Write(ScanCommand()); err != nil {
		return fmt.Errorf("send scan command: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("wait for scan descriptor: %w", err)
		}
		d, err := s.nr.ReadDescriptor()
		if errors.Is(err, errReadTimeout) {
			continue
		}
		if err != nil {
			return err
		}
		return d.ValidateScan()
	}
}

// Next returns the next node. Transport timeouts are retried until ctx is
// done.
func (s *StreamSource) Next(ctx context.Context) (Node, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Node{}, err
		}
		n, err := s.nr.ReadNode()
		if errors.Is(err, errReadTimeout) {
			continue
		}
		return n, err
	}
}

// Skipped returns how many bytes were dropped while resynchronising.
func (s *StreamSource) Skipped() int64 { return s.nr.Skipped() }

// Close sends a stop request and closes the stream. Safe to call twice.
func (s *StreamSource) Close() error {
	s.closeOnce.Do(func() {
		_, _ = s.rwc.Write(StopCommand())
		s.closeErr = s.rwc.Close()
	})
	return s.closeErr
}

// SliceSource replays a fixed list of nodes, then returns io.EOF.
type SliceSource struct {
	nodes []Node
	i     int
}

// NewSliceSource creates a source over nodes.
func NewSliceSource(nodes []Node) *SliceSource { return &SliceSource{nodes: nodes} }

// Next returns the next node or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Node, error) {
	if err := ctx.Err(); err != nil {
		return Node{}, err
	}
	if s.i >= len(s.nodes) {
		return Node{}, io.EOF
	}
	n := s.nodes[s.i]
	s.i++
	return n, nil
}

// Close does nothing.
func (s *SliceSource) Close() error { return nil }
