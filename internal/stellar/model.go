// Package stellar predicts the observables of a spotted star: rotational
// flux modulation, effective temperature and the transit depth of its planet.
//
// The surface is two-component. A fraction f of the disk is covered by spots
// at temperature TPhot+DeltaT and the rest is unspotted photosphere at TPhot.
// As the star rotates the visible covering fraction swings through
// [f−Δf/2, f+Δf/2]. The planet is assumed to cross unspotted photosphere, so
// unocculted spots deepen the transit by dimming the rest of the disk.
package stellar

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/spotfit/internal/models"
)

// ErrInvalidParameter marks a prediction requested outside the physical
// domain. The likelihood turns it into zero probability.
var ErrInvalidParameter = errors.New("invalid parameter")

// EarthRadiusInSolar is R⊕/R☉.
const EarthRadiusInSolar = 0.009168

// Star holds the fixed properties of the system.
type Star struct {
	StellarRadius float64 `json:"stellar_radius"` // R☉
	PlanetRadius  float64 `json:"planet_radius"`  // R⊕
	LogG          float64 `json:"logg"`           // cgs
}

// Validate checks the radii.
func (s Star) Validate() error {
	if s.StellarRadius <= 0 {
		return errors.New("stellar radius must be positive")
	}
	if s.PlanetRadius <= 0 {
		return errors.New("planet radius must be positive")
	}
	return nil
}

// GeometricDepth returns (Rp/Rs)².
func (s Star) GeometricDepth() float64 {
	r := s.PlanetRadius * EarthRadiusInSolar / s.StellarRadius
	return r * r
}

// Model evaluates observables for a parameter vector.
type Model struct {
	Star     Star
	Spectrum Spectrum
}

// New returns a model with a blackbody spectrum.
func New(star Star) (*Model, error) {
	if err := star.Validate(); err != nil {
		return nil, err
	}
	return &Model{Star: star, Spectrum: Blackbody{}}, nil
}

func checkDomain(p models.Params) error {
	switch {
	case !(p.TPhot > 0):
		return fmt.Errorf("%w: photosphere temperature %.1f K", ErrInvalidParameter, p.TPhot)
	case !(p.TSpot() > 0):
		return fmt.Errorf("%w: spot temperature %.1f K", ErrInvalidParameter, p.TSpot())
	case !(p.F >= 0 && p.F <= 1):
		return fmt.Errorf("%w: covering fraction %g", ErrInvalidParameter, p.F)
	case !(p.DeltaF >= 0):
		return fmt.Errorf("%w: covering fraction amplitude %g", ErrInvalidParameter, p.DeltaF)
	case p.F-p.DeltaF/2 < 0 || p.F+p.DeltaF/2 > 1:
		return fmt.Errorf("%w: covering fraction range [%g, %g] leaves [0, 1]", ErrInvalidParameter, p.F-p.DeltaF/2, p.F+p.DeltaF/2)
	}
	return nil
}

// deficit returns 1 − B(TSpot)/B(TPhot) in the band: the fractional flux
// lost where photosphere is replaced by spot.
func (m *Model) deficit(p models.Params, band models.Bandpass) (float64, error) {
	phot, err := m.Spectrum.BandFlux(p.TPhot, m.Star.LogG, band)
	if err != nil {
		return 0, err
	}
	spot, err := m.Spectrum.BandFlux(p.TSpot(), m.Star.LogG, band)
	if err != nil {
		return 0, err
	}
	if !(phot > 0) {
		return 0, fmt.Errorf("%w: no photospheric flux in band %s at %.0f K", ErrInvalidParameter, band.Label(), p.TPhot)
	}
	return 1 - spot/phot, nil
}

// Amplitude returns the peak-to-peak fractional flux modulation in a band,
// |Δf·k / (1 − f·k)| with k the band deficit.
//
// A peak-to-peak amplitude carries no sign, so dark spots (k > 0) and bright
// faculae (k < 0) both predict a positive value. The absolute value leaves a
// kink at ΔT = 0 where k changes sign: continuous, not differentiable.
func (m *Model) Amplitude(p models.Params, band models.Bandpass) (float64, error) {
	if err := checkDomain(p); err != nil {
		return 0, err
	}
	k, err := m.deficit(p, band)
	if err != nil {
		return 0, err
	}
	return math.Abs(p.DeltaF * k / (1 - p.F*k)), nil
}

// EffectiveTemperature returns the bolometric-flux-weighted temperature of
// the disk, Tphot·(1 − f(1 − (Tspot/Tphot)⁴))^¼.
func (m *Model) EffectiveTemperature(p models.Params) (float64, error) {
	if err := checkDomain(p); err != nil {
		return 0, err
	}
	ratio := p.TSpot() / p.TPhot
	r4 := ratio * ratio * ratio * ratio
	return p.TPhot * math.Sqrt(math.Sqrt(1-p.F*(1-r4))), nil
}

// Depth returns the transit depth in a band. The geometric depth is divided
// by the disk flux relative to an unspotted star, averaged over the visible
// covering fraction range [f−Δf/2, f+Δf/2]:
//
//	D = D₀ / B · ln(1+x)/x,  B = 1 − (f+Δf/2)k,  x = Δf·k / B
//
// which tends to D₀/(1 − f·k) as Δf → 0.
func (m *Model) Depth(p models.Params, band models.Bandpass) (float64, error) {
	if err := checkDomain(p); err != nil {
		return 0, err
	}
	k, err := m.deficit(p, band)
	if err != nil {
		return 0, err
	}
	d0 := m.Star.GeometricDepth()
	b := 1 - (p.F+p.DeltaF/2)*k
	if !(b > 0) {
		return 0, fmt.Errorf("%w: non-positive disk flux", ErrInvalidParameter)
	}
	return d0 * log1pOver(p.DeltaF*k/b) / b, nil
}

// RelativeDepth returns Depth shifted by the group's free offset.
func (m *Model) RelativeDepth(p models.Params, group string, band models.Bandpass) (float64, error) {
	d, err := m.Depth(p, band)
	if err != nil {
		return 0, err
	}
	return d + p.Offset(group), nil
}

// log1pOver returns ln(1+x)/x, continuous through x = 0.
func log1pOver(x float64) float64 {
	if math.Abs(x) < 1e-6 {
		return 1 - x/2 + x*x/3
	}
	return math.Log1p(x) / x
}
