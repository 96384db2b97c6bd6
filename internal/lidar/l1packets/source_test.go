package l1packets

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory sensor link: reads come from rx, writes land in tx.
type fakePort struct {
	rx     *bytes.Reader
	tx     bytes.Buffer
	closed int
}

func newFakePort(rx []byte) *fakePort { return &fakePort{rx: bytes.NewReader(rx)} }

func (p *fakePort) Read(b []byte) (int, error)  { return p.rx.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.tx.Write(b) }
func (p *fakePort) Close() error                { p.closed++; return nil }

func TestStreamSource_StartScanAndRead(t *testing.T) {
	t.Parallel()

	d := ScanDescriptor().Bytes()
	rx := append(d[:], encodeNodes(NodeAt(0, 90, 12, true), NodeAt(180, 45, 12, false))...)
	port := newFakePort(rx)
	src := NewStreamSource(port)

	ctx := context.Background()
	require.NoError(t, src.StartScan(ctx))
	assert.Equal(t, ScanCommand(), port.tx.Bytes())

	n, err := src.Next(ctx)
	require.NoError(t, err)
	assert.True(t, n.StartFlag)
	assert.InDelta(t, 90.0, n.DistanceCm(), 0.025)

	n, err = src.Next(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 180.0, n.Angle(), 1.0/64)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamSource_RejectsWrongDescriptor(t *testing.T) {
	t.Parallel()

	d := Descriptor{Length: 3, SendMode: SendModeSingle, DataType: 0x06}.Bytes()
	src := NewStreamSource(newFakePort(d[:]))
	assert.ErrorIs(t, src.StartScan(context.Background()), ErrBadDescriptor)
}

// flakyPort feeds its reads through a flakyReader, so a timeout lands
// between every chunk.
type flakyPort struct {
	flakyReader
	tx bytes.Buffer
}

func (p *flakyPort) Write(b []byte) (int, error) { return p.tx.Write(b) }
func (p *flakyPort) Close() error                { return nil }

func TestStreamSource_StartScanSurvivesSplitDescriptor(t *testing.T) {
	t.Parallel()

	d := ScanDescriptor().Bytes()
	node := encodeNodes(NodeAt(90, 60, 9, true))
	port := &flakyPort{flakyReader: flakyReader{chunks: [][]byte{d[:3], d[3:], node}}}
	src := NewStreamSource(port)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, src.StartScan(ctx))

	n, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, NodeAt(90, 60, 9, true), n)
	assert.Zero(t, src.Skipped())
}

func TestStreamSource_CloseSendsStopOnce(t *testing.T) {
	t.Parallel()

	port := newFakePort(nil)
	src := NewStreamSource(port)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	assert.Equal(t, StopCommand(), port.tx.Bytes())
	assert.Equal(t, 1, port.closed)
}

// stallPort never produces data.
type stallPort struct{ fakePort }

func (p *stallPort) Read([]byte) (int, error) { return 0, errReadTimeout }

func TestStreamSource_NextHonoursContext(t *testing.T) {
	t.Parallel()

	src := NewStreamSource(&stallPort{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ---

func TestSliceSource(t *testing.T) {
	t.Parallel()

	nodes := []Node{NodeAt(0, 1, 1, true), NodeAt(1, 2, 1, false)}
	src := NewSliceSource(nodes)
	ctx := context.Background()

	for _, want := range nodes {
		got, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewSliceSource(nodes).Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
