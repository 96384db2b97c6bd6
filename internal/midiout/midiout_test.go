package midiout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
	"github.com/banshee-data/lidarsynth/internal/lidar/l5tracks"
	"github.com/banshee-data/lidarsynth/internal/testutil"
)

var _ l5tracks.Output = (*MessageOutput)(nil)

func TestMessageOutput_Encodes(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(0)
	out := NewMessageOutput(rec.Send, Config{})

	out.NoteOn(3, 62, 127)
	out.Modulation(3, 43)
	out.NoteOff(3, 62)

	msgs := rec.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, midi.Message{0x93, 62, 127}, msgs[0])
	assert.Equal(t, midi.Message{0xB3, CCModulation, 43}, msgs[1])

	assert.Equal(t, []Event{
		{Kind: "note_on", Channel: 3, Data1: 62, Data2: 127},
		{Kind: "cc", Channel: 3, Data1: 1, Data2: 43},
		{Kind: "note_off", Channel: 3, Data1: 62, Data2: 0},
	}, rec.Events())
	assert.Equal(t, int64(3), out.Sent())
	assert.Zero(t, out.Failed())
}

func TestMessageOutput_Config(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(0)
	out := NewMessageOutput(rec.Send, Config{ModulationCC: 74, ReleaseVelocity: 64})

	out.Modulation(0, 10)
	out.NoteOff(0, 50)

	assert.Equal(t, []Event{
		{Kind: "cc", Channel: 0, Data1: 74, Data2: 10},
		{Kind: "note_off", Channel: 0, Data1: 50, Data2: 64},
	}, rec.Events())
}

func TestMessageOutput_SendFailureIsCounted(t *testing.T) {
	logs := testutil.CaptureLogs(t)

	out := NewMessageOutput(func(midi.Message) error { return errors.New("port gone") }, Config{})
	for i := 0; i < 5; i++ {
		out.NoteOn(1, 60, 100)
	}

	assert.Equal(t, int64(5), out.Failed())
	assert.Zero(t, out.Sent())
	assert.Len(t, logs.Lines(), 1, "only the first failure of a run is logged")
}

// ---

func TestRecorder_Limit(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(2)
	out := NewMessageOutput(rec.Send, Config{})
	out.NoteOn(1, 60, 1)
	out.NoteOn(1, 61, 1)
	out.NoteOn(1, 62, 1)

	evs := rec.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, uint8(61), evs[0].Data1)
	assert.Equal(t, uint8(62), evs[1].Data1)

	rec.Reset()
	assert.Empty(t, rec.Messages())
}

func TestDecode_IgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	_, ok := Decode(midi.ProgramChange(0, 5))
	assert.False(t, ok)
}

func TestMessageOutput_DrivesTracker(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(0)
	tr := l5tracks.NewTracker(l5tracks.DefaultTrackerConfig(), l5tracks.TrackerOptions{
		Output: NewMessageOutput(rec.Send, Config{}),
	})
	buf := make([]l4perception.PolarSample, 0, 4)
	buf = append(buf,
		l4perception.PolarSample{Angle: 10, Distance: 50},
		l4perception.PolarSample{Angle: 11, Distance: 50},
	)
	tr.ProcessBuffer(&buf)

	evs := rec.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, "note_on", evs[0].Kind)
	assert.Equal(t, uint8(l5tracks.DefaultFirstChannel), evs[0].Channel)
	assert.Equal(t, "cc", evs[1].Kind)
}
