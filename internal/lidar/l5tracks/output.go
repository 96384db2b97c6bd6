package l5tracks

// Output receives the control stream produced by tracked objects.
// Calls are fire-and-forget: implementations log transport failures
// rather than returning them, and the tracker never retries.
type Output interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note uint8)
	Modulation(channel, value uint8)
}

// NopOutput discards everything.
type NopOutput struct{}

func (NopOutput) NoteOn(channel, note, velocity uint8) {}
func (NopOutput) NoteOff(channel, note uint8)          {}
func (NopOutput) Modulation(channel, value uint8)      {}

// MultiOutput fans every call out to each output in order.
type MultiOutput []Output

func (m MultiOutput) NoteOn(channel, note, velocity uint8) {
	for _, o := range m {
		o.NoteOn(channel, note, velocity)
	}
}

func (m MultiOutput) NoteOff(channel, note uint8) {
	for _, o := range m {
		o.NoteOff(channel, note)
	}
}

func (m MultiOutput) Modulation(channel, value uint8) {
	for _, o := range m {
		o.Modulation(channel, value)
	}
}
