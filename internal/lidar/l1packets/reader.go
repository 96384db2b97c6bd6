package l1packets

import (
	"bufio"
	"fmt"
	"io"
)

// NodeReader decodes measurement nodes from a byte stream. When five bytes
// fail validation it slides forward one byte at a time until they pass,
// which recovers alignment after line noise or a mid-node start.
type NodeReader struct {
	r   *bufio.Reader
	win [NodeSize]byte
	n   int // bytes held in win

	desc  [7]byte
	descN int // bytes held in desc

	nodes   int64
	skipped int64
}

// NewNodeReader wraps r.
func NewNodeReader(r io.Reader) *NodeReader {
	return &NodeReader{r: bufio.NewReaderSize(r, 512)}
}

// ReadNode returns the next valid node. A read error leaves any partial
// node buffered, so a timeout can be retried without losing alignment.
// io.EOF is returned only on a node boundary; EOF inside a node becomes
// io.ErrUnexpectedEOF.
func (nr *NodeReader) ReadNode() (Node, error) {
	for {
		for nr.n < NodeSize {
			b, err := nr.r.ReadByte()
			if err != nil {
				if err == io.EOF && nr.n > 0 {
					return Node{}, io.ErrUnexpectedEOF
				}
				return Node{}, err
			}
			nr.win[nr.n] = b
			nr.n++
		}

		node, err := DecodeNode(nr.win)
		if err == nil {
			nr.n = 0
			nr.nodes++
			return node, nil
		}
		copy(nr.win[:], nr.win[1:])
		nr.n = NodeSize - 1
		nr.skipped++
	}
}

// ReadDescriptor reads a response descriptor through the same buffer that
// nodes are read from. Like ReadNode it keeps a partial descriptor across
// read errors, so a timeout in the middle of the handshake can be retried.
func (nr *NodeReader) ReadDescriptor() (Descriptor, error) {
	for nr.descN < len(nr.desc) {
		b, err := nr.r.ReadByte()
		if err != nil {
			if err == io.EOF && nr.descN > 0 {
				err = io.ErrUnexpectedEOF
			}
			return Descriptor{}, fmt.Errorf("read response descriptor: %w", err)
		}
		nr.desc[nr.descN] = b
		nr.descN++
	}
	nr.descN = 0
	return DecodeDescriptor(nr.desc)
}

// Nodes returns how many valid nodes have been read.
func (nr *NodeReader) Nodes() int64 { return nr.nodes }

// Skipped returns how many bytes were dropped while resynchronising.
func (nr *NodeReader) Skipped() int64 { return nr.skipped }
