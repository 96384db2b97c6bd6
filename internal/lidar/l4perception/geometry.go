package l4perception

import "math"

// PolarSample is a single range reading as delivered by the sensor driver.
// Angle is in degrees and may be unnormalised; Distance is in centimetres.
// Quality is only meaningful when HasQuality is set; a reported quality of
// zero marks an invalid reading.
type PolarSample struct {
	Angle      float64
	Distance   float64
	Quality    uint8
	HasQuality bool
}

// Point is a position in the sensor's Cartesian plane (centimetres).
type Point struct {
	X, Y float64
}

// PolarToCartesian converts an angle in degrees and a distance into a point.
// The angle is reduced modulo 360 before conversion.
func PolarToCartesian(angleDeg, distance float64) Point {
	theta := math.Mod(angleDeg, 360.0) * math.Pi / 180.0
	return Point{
		X: distance * math.Cos(theta),
		Y: distance * math.Sin(theta),
	}
}

// CartesianToPolar returns the bearing in [0, 360) degrees and the range of p.
func CartesianToPolar(p Point) (angleDeg, distance float64) {
	distance = math.Hypot(p.X, p.Y)
	angleDeg = math.Atan2(p.Y, p.X) * 180.0 / math.Pi
	if angleDeg < 0 {
		angleDeg += 360.0
	}
	// A tiny negative y rounds to exactly 360 after the shift above.
	if angleDeg >= 360.0 {
		angleDeg -= 360.0
	}
	return angleDeg, distance
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Point returns the sample position projected to Cartesian coordinates.
func (s PolarSample) Point() Point {
	return PolarToCartesian(s.Angle, s.Distance)
}

// Usable reports whether the sample carries a finite, non-negative range
// no further than maxDistance and, when quality is reported, a non-zero
// quality.
func (s PolarSample) Usable(maxDistance float64) bool {
	if math.IsNaN(s.Distance) || math.IsInf(s.Distance, 0) || s.Distance < 0 {
		return false
	}
	if math.IsNaN(s.Angle) || math.IsInf(s.Angle, 0) {
		return false
	}
	if s.HasQuality && s.Quality == 0 {
		return false
	}
	return s.Distance <= maxDistance
}
