package models

import (
	"errors"
	"fmt"
	"math"
)

// Point is a single photometric measurement. Time is in days (typically BJD).
type Point struct {
	Time      float64 `json:"time"`
	Flux      float64 `json:"flux"`
	FluxError float64 `json:"flux_error"`
}

// Validate checks that all point fields are finite and the error is non-negative
func (p *Point) Validate() error {
	if math.IsNaN(p.Time) || math.IsInf(p.Time, 0) {
		return errors.New("time must be finite")
	}
	if math.IsNaN(p.Flux) || math.IsInf(p.Flux, 0) {
		return errors.New("flux must be finite")
	}
	if math.IsNaN(p.FluxError) || p.FluxError < 0 {
		return errors.New("flux error must be non-negative")
	}
	return nil
}

// LightCurve is a time-ascending series of points from one instrument.
// Filtering and binning produce new LightCurve values; the receiver is never
// modified so the original series stays available for inspection.
type LightCurve struct {
	Source string  `json:"source"` // instrument/telescope id
	Points []Point `json:"points"`
}

// Len returns the number of points.
func (lc LightCurve) Len() int {
	return len(lc.Points)
}

// Times returns a copy of the point times.
func (lc LightCurve) Times() []float64 {
	out := make([]float64, len(lc.Points))
	for i, p := range lc.Points {
		out[i] = p.Time
	}
	return out
}

// Clone returns a deep copy.
func (lc LightCurve) Clone() LightCurve {
	pts := make([]Point, len(lc.Points))
	copy(pts, lc.Points)
	return LightCurve{Source: lc.Source, Points: pts}
}

// Validate checks every point and the time ordering. Equal times are allowed.
func (lc LightCurve) Validate() error {
	for i := range lc.Points {
		if err := lc.Points[i].Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
		if i > 0 && lc.Points[i].Time < lc.Points[i-1].Time {
			return fmt.Errorf("point %d: time %.6f precedes previous point %.6f", i, lc.Points[i].Time, lc.Points[i-1].Time)
		}
	}
	return nil
}
