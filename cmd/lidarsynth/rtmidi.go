//go:build cgo

package main

// The rtmidi driver needs cgo; without it no MIDI ports are listed and
// -midi-port fails to open.
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
