package stellar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/rewired-gh/spotfit/internal/models"
)

// Radiation constants for wavelengths in microns.
const (
	planckC1 = 1.191042972e8 // 2hc², W µm⁴ m⁻² sr⁻¹
	planckC2 = 14387.7688    // hc/k, µm K
)

// Spectrum gives the surface flux of a photosphere integrated over a band.
// Only ratios of BandFlux values at equal logg are used by the model, so
// implementations are free to pick their flux units.
type Spectrum interface {
	BandFlux(teff, logg float64, band models.Bandpass) (float64, error)
}

// Planck returns the blackbody spectral radiance at wavelength lambda (µm).
func Planck(lambda, teff float64) float64 {
	if lambda <= 0 || teff <= 0 {
		return 0
	}
	x := planckC2 / (lambda * teff)
	return planckC1 / (math.Pow(lambda, 5) * math.Expm1(x))
}

// Blackbody integrates Planck's law over a band with fixed-order
// Gauss–Legendre quadrature. The integrand is smooth, so the result is
// continuous and differentiable in temperature. Blackbody surfaces do not
// depend on surface gravity.
type Blackbody struct {
	Nodes int // quadrature order, 48 when zero
}

// BandFlux implements Spectrum.
func (b Blackbody) BandFlux(teff, _ float64, band models.Bandpass) (float64, error) {
	if teff <= 0 || math.IsNaN(teff) {
		return 0, fmt.Errorf("%w: temperature %.1f K", ErrInvalidParameter, teff)
	}
	lo, hi, err := band.Range()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	n := b.Nodes
	if n <= 0 {
		n = 48
	}
	f := func(lambda float64) float64 { return Planck(lambda, teff) }
	return quad.Fixed(f, lo, hi, n, nil, 0), nil
}
