package l1packets

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeNodes(nodes ...Node) []byte {
	var buf bytes.Buffer
	for _, n := range nodes {
		b := n.Bytes()
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func TestNodeReader_ReadsSequence(t *testing.T) {
	t.Parallel()

	want := []Node{
		NodeAt(0, 100, 20, true),
		NodeAt(1, 101, 20, false),
		NodeAt(2, 102, 20, false),
	}
	nr := NewNodeReader(bytes.NewReader(encodeNodes(want...)))

	for _, w := range want {
		got, err := nr.ReadNode()
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
	_, err := nr.ReadNode()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(3), nr.Nodes())
	assert.Zero(t, nr.Skipped())
}

func TestNodeReader_ResyncsAfterGarbage(t *testing.T) {
	t.Parallel()

	a := NodeAt(10, 50, 10, true)
	b := NodeAt(11, 51, 10, false)
	// 0x00 has neither start bit set, 0x03 has both.
	stream := append([]byte{0x00, 0x03, 0x00}, encodeNodes(a, b)...)
	nr := NewNodeReader(bytes.NewReader(stream))

	got, err := nr.ReadNode()
	require.NoError(t, err)
	assert.Equal(t, a, got)
	got, err = nr.ReadNode()
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, int64(3), nr.Skipped())
}

func TestNodeReader_TruncatedNode(t *testing.T) {
	t.Parallel()

	stream := encodeNodes(NodeAt(0, 10, 1, true))
	stream = append(stream, 0x06, 0x01)
	nr := NewNodeReader(bytes.NewReader(stream))

	_, err := nr.ReadNode()
	require.NoError(t, err)
	_, err = nr.ReadNode()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// flakyReader returns errReadTimeout between every chunk.
type flakyReader struct {
	chunks [][]byte
	stall  bool
}

func (f *flakyReader) Read(p []byte) (int, error) {
	if f.stall {
		f.stall = false
		return 0, errReadTimeout
	}
	if len(f.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[0])
	f.chunks = f.chunks[1:]
	f.stall = true
	return n, nil
}

func TestNodeReader_TimeoutKeepsPartialNode(t *testing.T) {
	t.Parallel()

	raw := encodeNodes(NodeAt(30, 80, 5, false))
	nr := NewNodeReader(&flakyReader{chunks: [][]byte{raw[:2], raw[2:]}})

	_, err := nr.ReadNode()
	require.ErrorIs(t, err, errReadTimeout)

	got, err := nr.ReadNode()
	require.NoError(t, err)
	assert.Equal(t, NodeAt(30, 80, 5, false), got)
	assert.Zero(t, nr.Skipped())
}

func TestNodeReader_TimeoutKeepsPartialDescriptor(t *testing.T) {
	t.Parallel()

	d := ScanDescriptor().Bytes()
	nr := NewNodeReader(&flakyReader{chunks: [][]byte{d[:2], d[2:5], d[5:]}})

	_, err := nr.ReadDescriptor()
	require.ErrorIs(t, err, errReadTimeout)
	_, err = nr.ReadDescriptor()
	require.ErrorIs(t, err, errReadTimeout)

	got, err := nr.ReadDescriptor()
	require.NoError(t, err)
	assert.Equal(t, ScanDescriptor(), got)
}

func TestNodeReader_TruncatedDescriptor(t *testing.T) {
	t.Parallel()

	d := ScanDescriptor().Bytes()
	nr := NewNodeReader(bytes.NewReader(d[:4]))
	_, err := nr.ReadDescriptor()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
