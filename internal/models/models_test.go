package models

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		point   Point
		wantErr bool
	}{
		{name: "valid point", point: Point{Time: 2455000.5, Flux: 1.0, FluxError: 0.001}},
		{name: "zero error", point: Point{Time: 1, Flux: 1, FluxError: 0}},
		{name: "NaN time", point: Point{Time: math.NaN(), Flux: 1, FluxError: 0.1}, wantErr: true},
		{name: "infinite flux", point: Point{Time: 1, Flux: math.Inf(1), FluxError: 0.1}, wantErr: true},
		{name: "negative error", point: Point{Time: 1, Flux: 1, FluxError: -0.1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLightCurveValidateOrdering(t *testing.T) {
	lc := LightCurve{Points: []Point{{Time: 1}, {Time: 1}, {Time: 2}}}
	if err := lc.Validate(); err != nil {
		t.Errorf("equal times should be allowed: %v", err)
	}
	lc.Points = append(lc.Points, Point{Time: 1.5})
	if err := lc.Validate(); err == nil {
		t.Error("expected error for out-of-order point")
	}
}

func TestLightCurveClone(t *testing.T) {
	lc := LightCurve{Source: "MEarth", Points: []Point{{Time: 1, Flux: 1}}}
	clone := lc.Clone()
	clone.Points[0].Flux = 2
	if lc.Points[0].Flux != 1 {
		t.Error("Clone shares point storage with the original")
	}
}

func TestBandpassResolve(t *testing.T) {
	tests := []struct {
		name    string
		band    Bandpass
		want    Bandpass
		wantErr error
	}{
		{name: "catalog name", band: NamedBandpass("Kepler"), want: Bandpass{Name: "Kepler", Center: 0.66, Width: 0.48}},
		{name: "case and space insensitive", band: NamedBandpass(" irac1 "), want: Bandpass{Name: "IRAC1", Center: 3.56, Width: 0.76}},
		{name: "explicit range", band: NewBandpass(1.2, 0.02), want: Bandpass{Center: 1.2, Width: 0.02}},
		{name: "explicit range wins", band: Bandpass{Name: "J", Center: 1.1, Width: 0.1}, want: Bandpass{Name: "J", Center: 1.1, Width: 0.1}},
		{name: "unknown name", band: NamedBandpass("W9"), wantErr: ErrUnknownBandpass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.band.Resolve()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := (Bandpass{}).Resolve(); err == nil {
		t.Error("expected error for empty bandpass")
	}
	if _, err := NewBandpass(0.01, 0.1).Resolve(); err == nil {
		t.Error("expected error for band reaching non-positive wavelength")
	}
}

func TestBandpassRangeAndLabel(t *testing.T) {
	lo, hi, err := NewBandpass(1.0, 0.2).Range()
	if err != nil || math.Abs(lo-0.9) > 1e-12 || math.Abs(hi-1.1) > 1e-12 {
		t.Errorf("Range() = %v, %v, %v", lo, hi, err)
	}
	if got := NamedBandpass("TESS").Label(); got != "TESS" {
		t.Errorf("Label() = %q", got)
	}
	if got := NewBandpass(1.2, 0.02).Label(); got != "1.2±0.01um" {
		t.Errorf("Label() = %q", got)
	}
	if len(CatalogNames()) != len(filterCatalog) {
		t.Error("CatalogNames() does not list every filter")
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	layout := NewLayout([]string{"wfc3", "ground"})
	if layout.Dim() != 7 {
		t.Fatalf("Dim() = %d, want 7", layout.Dim())
	}
	wantNames := []string{"delta_t", "t_phot", "f", "delta_f", "f1", "offset[ground]", "offset[wfc3]"}
	if !reflect.DeepEqual(layout.Names(), wantNames) {
		t.Errorf("Names() = %v", layout.Names())
	}

	p := Params{DeltaT: -500, TPhot: 3300, F: 0.2, DeltaF: 0.05, F1: 0.01, Offsets: map[string]float64{"wfc3": 1e-4, "ground": -2e-4}}
	v := layout.Vector(p)
	if v[5] != -2e-4 || v[6] != 1e-4 {
		t.Errorf("offsets out of order: %v", v)
	}
	if got := layout.Params(v); !reflect.DeepEqual(got, p) {
		t.Errorf("Params(Vector(p)) = %+v, want %+v", got, p)
	}
}

func TestLayoutParamsPanicsOnLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for wrong vector length")
		}
	}()
	NewLayout(nil).Params([]float64{1, 2})
}

func TestParamsClone(t *testing.T) {
	p := Params{TPhot: 3300, Offsets: map[string]float64{"a": 1}}
	c := p.Clone()
	c.Offsets["a"] = 2
	if p.Offsets["a"] != 1 {
		t.Error("Clone shares the offsets map")
	}
	if p.TSpot() != 3300 || p.Offset("missing") != 0 {
		t.Error("unexpected TSpot or Offset")
	}
}

func TestChainValidate(t *testing.T) {
	valid := func() *Chain {
		return &Chain{
			ParamNames:   []string{"a"},
			Walkers:      2,
			Steps:        2,
			Samples:      [][]float64{{1}, {2}, {3}, {4}},
			LogPosterior: []float64{0, 0, 0, 0},
			CreatedAt:    time.Now(),
		}
	}

	tests := []struct {
		name    string
		modify  func(*Chain)
		wantErr bool
	}{
		{name: "valid chain", modify: func(*Chain) {}},
		{name: "no walkers", modify: func(c *Chain) { c.Walkers = 0 }, wantErr: true},
		{name: "no names", modify: func(c *Chain) { c.ParamNames = nil }, wantErr: true},
		{name: "short samples", modify: func(c *Chain) { c.Samples = c.Samples[:3] }, wantErr: true},
		{name: "short log posterior", modify: func(c *Chain) { c.LogPosterior = c.LogPosterior[:1] }, wantErr: true},
		{name: "wide sample", modify: func(c *Chain) { c.Samples[0] = []float64{1, 2} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	c := valid()
	// Step-major: step 0 holds walkers 0 and 1.
	if got := c.WalkerTrace(1, 0); !reflect.DeepEqual(got, []float64{2, 4}) {
		t.Errorf("WalkerTrace(1, 0) = %v", got)
	}
	if got := c.Column(0); !reflect.DeepEqual(got, []float64{1, 2, 3, 4}) {
		t.Errorf("Column(0) = %v", got)
	}
}

func TestParamSummaryContains(t *testing.T) {
	s := ParamSummary{Lower: 1, Upper: 2}
	if !s.Contains(1) || !s.Contains(1.5) || s.Contains(2.1) {
		t.Error("unexpected Contains result")
	}
}
