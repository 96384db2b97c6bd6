// Package midiout turns the tracker's control stream into MIDI channel
// messages and delivers them to a port or an in-memory recorder.
package midiout

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/banshee-data/lidarsynth/internal/monitoring"
)

// CCModulation is the modulation wheel controller number.
const CCModulation = 1

// SendFunc delivers one encoded message.
type SendFunc func(msg midi.Message) error

// Config shapes the messages MessageOutput produces.
type Config struct {
	// ModulationCC is the controller Modulation writes to. Zero selects
	// CCModulation.
	ModulationCC uint8
	// ReleaseVelocity, when non-zero, is sent with note-off. Zero sends a
	// plain note-off.
	ReleaseVelocity uint8
}

// MessageOutput encodes NoteOn, NoteOff and Modulation calls and passes
// them to a SendFunc. Send failures are counted and logged, never returned.
type MessageOutput struct {
	send SendFunc
	cfg  Config

	sent   atomic.Int64
	failed atomic.Int64
}

// NewMessageOutput creates an output writing through send.
func NewMessageOutput(send SendFunc, cfg Config) *MessageOutput {
	if cfg.ModulationCC == 0 {
		cfg.ModulationCC = CCModulation
	}
	return &MessageOutput{send: send, cfg: cfg}
}

func (m *MessageOutput) NoteOn(channel, note, velocity uint8) {
	m.write(midi.NoteOn(channel, note, velocity))
}

func (m *MessageOutput) NoteOff(channel, note uint8) {
	if m.cfg.ReleaseVelocity > 0 {
		m.write(midi.NoteOffVelocity(channel, note, m.cfg.ReleaseVelocity))
		return
	}
	m.write(midi.NoteOff(channel, note))
}

func (m *MessageOutput) Modulation(channel, value uint8) {
	m.write(midi.ControlChange(channel, m.cfg.ModulationCC, value))
}

func (m *MessageOutput) write(msg midi.Message) {
	if err := m.send(msg); err != nil {
		if n := m.failed.Add(1); n == 1 || n%100 == 0 {
			monitoring.Logf("[midiout] send %s failed (%d failures): %v", msg, n, err)
		}
		return
	}
	m.sent.Add(1)
}

// Sent returns how many messages were delivered.
func (m *MessageOutput) Sent() int64 { return m.sent.Load() }

// Failed returns how many messages the transport rejected.
func (m *MessageOutput) Failed() int64 { return m.failed.Load() }

// Port is a MessageOutput bound to an open driver port.
type Port struct {
	*MessageOutput
	out drivers.Out
}

// OpenPort finds the output port called name and opens it. A driver must
// be registered by importing it, as cmd/lidarsynth does.
func OpenPort(name string, cfg Config) (*Port, error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("find MIDI output %q: %w", name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open MIDI output %q: %w", name, err)
	}
	monitoring.Logf("[midiout] sending to %s", out.String())
	return &Port{MessageOutput: NewMessageOutput(send, cfg), out: out}, nil
}

// Name returns the driver's name for the port.
func (p *Port) Name() string { return p.out.String() }

// Close closes the port.
func (p *Port) Close() error {
	if p.out.IsOpen() {
		return p.out.Close()
	}
	return nil
}

// ListPorts returns the names of the available output ports.
func ListPorts() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// CloseDriver releases the registered driver.
func CloseDriver() { midi.CloseDriver() }

// Event is a decoded channel message.
type Event struct {
	Kind    string `json:"kind"` // "note_on", "note_off" or "cc"
	Channel uint8  `json:"channel"`
	Data1   uint8  `json:"data1"` // key or controller
	Data2   uint8  `json:"data2"` // velocity or value
}

// Decode classifies msg. ok is false for message types the tracker never
// sends.
func Decode(msg midi.Message) (ev Event, ok bool) {
	var ch, a, b uint8
	switch {
	case msg.GetNoteOn(&ch, &a, &b):
		return Event{Kind: "note_on", Channel: ch, Data1: a, Data2: b}, true
	case msg.GetNoteOff(&ch, &a, &b):
		return Event{Kind: "note_off", Channel: ch, Data1: a, Data2: b}, true
	case msg.GetControlChange(&ch, &a, &b):
		return Event{Kind: "cc", Channel: ch, Data1: a, Data2: b}, true
	}
	return Event{}, false
}

// Recorder keeps the most recent messages in memory. It is safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	limit int
	msgs  []midi.Message
}

// NewRecorder keeps up to limit messages; limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder { return &Recorder{limit: limit} }

// Send stores msg. It satisfies SendFunc.
func (r *Recorder) Send(msg midi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, append(midi.Message(nil), msg...))
	if r.limit > 0 && len(r.msgs) > r.limit {
		r.msgs = append(r.msgs[:0], r.msgs[len(r.msgs)-r.limit:]...)
	}
	return nil
}

// Messages returns a copy of the stored messages, oldest first.
func (r *Recorder) Messages() []midi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]midi.Message(nil), r.msgs...)
}

// Events returns the stored messages decoded.
func (r *Recorder) Events() []Event {
	msgs := r.Messages()
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		if ev, ok := Decode(m); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops every stored message.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}
