package l5tracks

import (
	"math"
	"time"

	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
)

// TrackedObject is one persistent identity matched across rotations.
// It holds an output channel for its whole life.
type TrackedObject struct {
	// Identity
	ID      string
	Channel uint8

	// Position (cm, sensor frame) and its polar form
	X        float64
	Y        float64
	Angle    float64 // degrees, [0,360)
	Distance float64 // cm

	// Rates from the last update (per second)
	Speed         float64 // cm/s
	AngleSpeed    float64 // deg/s, shortest way round
	DistanceSpeed float64 // cm/s, positive when receding

	// Control values
	CurrentNote int  // note last started on Channel
	PendingNote int  // note the next emit will play
	Modulation  int  // 0..127
	Sounding    bool // CurrentNote has been started and not stopped

	// Matched is cleared at the start of each rotation and set again on
	// update; objects still unmatched afterwards are removed.
	Matched bool

	Created    time.Time
	LastUpdate time.Time
	Updates    int

	params NoteParams
}

func newTrackedObject(id string, ch uint8, p l4perception.Point, params NoteParams, now time.Time) *TrackedObject {
	o := &TrackedObject{
		ID:         id,
		Channel:    ch,
		Matched:    true,
		Created:    now,
		LastUpdate: now,
		params:     params,
	}
	o.setPosition(p)
	o.calculateControlValues()
	return o
}

// Point returns the object's position.
func (o *TrackedObject) Point() l4perception.Point {
	return l4perception.Point{X: o.X, Y: o.Y}
}

// Params returns the note parameters the object currently maps with.
func (o *TrackedObject) Params() NoteParams { return o.params }

func (o *TrackedObject) setPosition(p l4perception.Point) {
	o.X, o.Y = p.X, p.Y
	o.Angle, o.Distance = l4perception.CartesianToPolar(p)
}

// update moves the object to p and derives rates from the time elapsed
// since the previous update. Rates are left alone when no time has passed.
func (o *TrackedObject) update(p l4perception.Point, now time.Time) {
	prev := o.Point()
	prevAngle, prevDistance := o.Angle, o.Distance
	o.setPosition(p)

	if dt := now.Sub(o.LastUpdate).Seconds(); dt > 0 {
		o.Speed = l4perception.Distance(prev, p) / dt
		o.AngleSpeed = angleDelta(prevAngle, o.Angle) / dt
		o.DistanceSpeed = (o.Distance - prevDistance) / dt
	}
	o.LastUpdate = now
	o.Updates++
	o.Matched = true
	o.calculateControlValues()
}

// setParams swaps the note mapping and recomputes pending values. The new
// note is heard at the next emit.
func (o *TrackedObject) setParams(params NoteParams) {
	o.params = params
	o.calculateControlValues()
}

func (o *TrackedObject) calculateControlValues() {
	o.PendingNote = o.params.Note(o.Angle)
	o.Modulation = o.params.Modulation(o.Distance)
}

// emit sends the pending note if it differs from the sounding one, then
// the modulation value. Modulation is sent every call.
func (o *TrackedObject) emit(out Output) {
	switch {
	case !o.Sounding:
		out.NoteOn(o.Channel, uint8(o.PendingNote), o.params.Velocity)
	case o.CurrentNote != o.PendingNote:
		out.NoteOff(o.Channel, uint8(o.CurrentNote))
		out.NoteOn(o.Channel, uint8(o.PendingNote), o.params.Velocity)
	}
	o.CurrentNote = o.PendingNote
	o.Sounding = true
	out.Modulation(o.Channel, uint8(o.Modulation))
}

// release stops the sounding note. Calling it again does nothing.
func (o *TrackedObject) release(out Output) {
	if !o.Sounding {
		return
	}
	out.NoteOff(o.Channel, uint8(o.CurrentNote))
	o.Sounding = false
}

// angleDelta returns b-a wrapped into (-180, 180].
func angleDelta(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
