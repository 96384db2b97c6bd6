package l1packets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	t.Parallel()

	got, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, got)
}

func TestPortOptions_Normalize_ExplicitValues(t *testing.T) {
	t.Parallel()

	got, err := PortOptions{BaudRate: 256000, DataBits: 7, StopBits: 2, Parity: " even "}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 256000, DataBits: 7, StopBits: 2, Parity: "E"}, got)
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits low", PortOptions{DataBits: 4}},
		{"data bits high", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestPortOptions_Equal(t *testing.T) {
	t.Parallel()

	assert.True(t, PortOptions{}.Equal(PortOptions{BaudRate: 115200, Parity: "none"}))
	assert.False(t, PortOptions{}.Equal(PortOptions{BaudRate: 9600}))
	assert.False(t, PortOptions{StopBits: 5}.Equal(PortOptions{StopBits: 5}))
}

func TestPortOptions_SerialMode(t *testing.T) {
	t.Parallel()

	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	mode, err = PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.OddParity, mode.Parity)

	_, err = PortOptions{DataBits: 12}.SerialMode()
	assert.Error(t, err)
}

func TestTimeoutPort_EmptyReadIsTimeout(t *testing.T) {
	t.Parallel()

	n, err := timeoutPort{Port: emptyPort{}}.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, errReadTimeout)
}

// emptyPort is a serial.Port whose reads always time out.
type emptyPort struct{ serial.Port }

func (emptyPort) Read([]byte) (int, error) { return 0, nil }
