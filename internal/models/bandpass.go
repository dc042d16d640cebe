package models

import (
	"errors"
	"fmt"
	"strings"
)

// Bandpass is the wavelength range a measurement is integrated over.
// Wavelengths are in microns. A bandpass is either given explicitly by
// Center/Width or by the Name of a catalogued photometric filter.
type Bandpass struct {
	Name   string  `json:"name,omitempty"`
	Center float64 `json:"center,omitempty"`
	Width  float64 `json:"width,omitempty"`
}

// ErrUnknownBandpass is returned when a named filter is not in the catalog.
var ErrUnknownBandpass = errors.New("unknown bandpass")

// Top-hat approximations of common photometric systems.
var filterCatalog = map[string]Bandpass{
	"kepler": {Name: "Kepler", Center: 0.66, Width: 0.48},
	"tess":   {Name: "TESS", Center: 0.80, Width: 0.40},
	"mearth": {Name: "MEarth", Center: 0.8575, Width: 0.285},
	"u":      {Name: "U", Center: 0.365, Width: 0.066},
	"b":      {Name: "B", Center: 0.445, Width: 0.094},
	"v":      {Name: "V", Center: 0.551, Width: 0.088},
	"r":      {Name: "R", Center: 0.658, Width: 0.138},
	"i":      {Name: "I", Center: 0.806, Width: 0.149},
	"j":      {Name: "J", Center: 1.235, Width: 0.162},
	"h":      {Name: "H", Center: 1.662, Width: 0.251},
	"ks":     {Name: "Ks", Center: 2.159, Width: 0.262},
	"irac1":  {Name: "IRAC1", Center: 3.56, Width: 0.76},
	"irac2":  {Name: "IRAC2", Center: 4.50, Width: 1.10},
}

// NamedBandpass returns a bandpass that refers to a catalogued filter.
func NamedBandpass(name string) Bandpass {
	return Bandpass{Name: name}
}

// NewBandpass returns an explicit top-hat bandpass.
func NewBandpass(center, width float64) Bandpass {
	return Bandpass{Center: center, Width: width}
}

// Resolve returns the bandpass with Center and Width filled in. Explicit
// ranges win over the catalog so that a named row can override a filter.
func (b Bandpass) Resolve() (Bandpass, error) {
	if b.Width > 0 {
		if b.Center-b.Width/2 <= 0 {
			return Bandpass{}, fmt.Errorf("bandpass %s extends to non-positive wavelength", b.Label())
		}
		return b, nil
	}
	if b.Name == "" {
		return Bandpass{}, errors.New("bandpass has neither a name nor a positive width")
	}
	known, ok := filterCatalog[strings.ToLower(strings.TrimSpace(b.Name))]
	if !ok {
		return Bandpass{}, fmt.Errorf("%w: %q", ErrUnknownBandpass, b.Name)
	}
	return known, nil
}

// Range returns the band edges in microns.
func (b Bandpass) Range() (lo, hi float64, err error) {
	r, err := b.Resolve()
	if err != nil {
		return 0, 0, err
	}
	return r.Center - r.Width/2, r.Center + r.Width/2, nil
}

// Label is a human-readable identifier, used as a map key when grouping
// predictions per band.
func (b Bandpass) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("%.4g±%.4gum", b.Center, b.Width/2)
}

// CatalogNames lists the catalogued filter names.
func CatalogNames() []string {
	names := make([]string, 0, len(filterCatalog))
	for _, b := range filterCatalog {
		names = append(names, b.Name)
	}
	return names
}
