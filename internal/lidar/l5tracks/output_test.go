package l5tracks

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type outputEvent struct {
	Kind    string // "on", "off" or "mod"
	Channel uint8
	Value   uint8
}

func (e outputEvent) String() string {
	return fmt.Sprintf("%s ch%d %d", e.Kind, e.Channel, e.Value)
}

// recordingOutput captures everything a tracker sends.
type recordingOutput struct {
	events []outputEvent
}

func (r *recordingOutput) NoteOn(channel, note, velocity uint8) {
	r.events = append(r.events, outputEvent{Kind: "on", Channel: channel, Value: note})
}

func (r *recordingOutput) NoteOff(channel, note uint8) {
	r.events = append(r.events, outputEvent{Kind: "off", Channel: channel, Value: note})
}

func (r *recordingOutput) Modulation(channel, value uint8) {
	r.events = append(r.events, outputEvent{Kind: "mod", Channel: channel, Value: value})
}

func (r *recordingOutput) count(kind string) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recordingOutput) reset() { r.events = nil }

func TestMultiOutput_FansOut(t *testing.T) {
	t.Parallel()

	a, b := &recordingOutput{}, &recordingOutput{}
	out := MultiOutput{a, NopOutput{}, b}
	out.NoteOn(2, 60, 100)
	out.Modulation(2, 64)
	out.NoteOff(2, 60)

	want := []outputEvent{{"on", 2, 60}, {"mod", 2, 64}, {"off", 2, 60}}
	assert.Equal(t, want, a.events)
	assert.Equal(t, want, b.events)
}
