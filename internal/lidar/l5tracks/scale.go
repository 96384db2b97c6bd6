package l5tracks

import (
	"fmt"
	"math"
	"strings"
)

// ScaleType selects how angular degrees map to semitones.
type ScaleType int

const (
	ScaleChromatic ScaleType = iota // every degree is one semitone
	ScaleMajor
	ScaleMinor
)

var (
	majorSemitones = [7]int{0, 2, 4, 5, 7, 9, 11}
	minorSemitones = [7]int{0, 2, 3, 5, 7, 8, 10}
)

func (s ScaleType) String() string {
	switch s {
	case ScaleChromatic:
		return "chromatic"
	case ScaleMajor:
		return "major"
	case ScaleMinor:
		return "minor"
	default:
		return fmt.Sprintf("ScaleType(%d)", int(s))
	}
}

// ParseScaleType parses the names produced by ScaleType.String.
// An empty string selects the chromatic scale.
func ParseScaleType(s string) (ScaleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chromatic", "":
		return ScaleChromatic, nil
	case "major":
		return ScaleMajor, nil
	case "minor":
		return ScaleMinor, nil
	default:
		return ScaleChromatic, fmt.Errorf("unknown scale type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ScaleType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ScaleType) UnmarshalText(b []byte) error {
	v, err := ParseScaleType(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Length is the number of degrees in one octave of the scale.
func (s ScaleType) Length() int {
	if s == ScaleMajor || s == ScaleMinor {
		return 7
	}
	return 12
}

// Semitones returns the semitone offset of a scale degree above the root.
// Degrees past the first octave wrap and add 12 per octave.
func (s ScaleType) Semitones(degree int) int {
	var table *[7]int
	switch s {
	case ScaleMajor:
		table = &majorSemitones
	case ScaleMinor:
		table = &minorSemitones
	default:
		return degree
	}
	octave, idx := degree/7, degree%7
	if idx < 0 {
		idx += 7
		octave--
	}
	return table[idx] + 12*octave
}

// NoteParams is the slice of tracker configuration that drives the
// control values of a tracked object.
type NoteParams struct {
	RootNote         int
	Scale            ScaleType
	MaxDistance      float64 // cm; distance mapped to modulation 0
	NotesPerRotation int     // degrees per 360°; 0 means one octave of Scale
	Velocity         uint8
}

// DefaultNoteParams returns the parameters the installation ships with.
func DefaultNoteParams() NoteParams {
	return NoteParams{
		RootNote:    50,
		Scale:       ScaleChromatic,
		MaxDistance: 150,
		Velocity:    127,
	}
}

func (p NoteParams) notesPerRotation() int {
	if p.NotesPerRotation > 0 {
		return p.NotesPerRotation
	}
	return p.Scale.Length()
}

// Degree returns the scale degree for an angle in degrees.
func (p NoteParams) Degree(angle float64) int {
	return int(math.Floor(angle * float64(p.notesPerRotation()) / 360))
}

// Note returns the MIDI note for an angle, clamped to 0..127.
func (p NoteParams) Note(angle float64) int {
	return clampMIDI(p.Scale.Semitones(p.Degree(angle)) + p.RootNote)
}

// Modulation maps distance to a controller value: 127 at the sensor,
// falling to 0 at MaxDistance.
func (p NoteParams) Modulation(distance float64) int {
	if p.MaxDistance <= 0 {
		return 0
	}
	return clampMIDI(127 - int(math.Floor(distance*127/p.MaxDistance)))
}

func clampMIDI(v int) int {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}
