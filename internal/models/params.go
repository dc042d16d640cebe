package models

import (
	"fmt"
	"sort"
)

// Params is one point in the spot-model parameter space.
//
// Temperatures are in Kelvin. The spotted photosphere sits at
// TPhot+DeltaT, so cool spots have a negative DeltaT. F is the time-averaged
// covering fraction, DeltaF the rotationally variable part and F1 the
// covering fraction of one representative spot.
type Params struct {
	DeltaT  float64            `json:"delta_t"`
	TPhot   float64            `json:"t_phot"`
	F       float64            `json:"f"`
	DeltaF  float64            `json:"delta_f"`
	F1      float64            `json:"f1"`
	Offsets map[string]float64 `json:"offsets,omitempty"` // relative-depth group -> additive offset
}

// TSpot returns the spotted-photosphere temperature.
func (p Params) TSpot() float64 {
	return p.TPhot + p.DeltaT
}

// Offset returns the relative-depth offset for a group (zero when unset).
func (p Params) Offset(group string) float64 {
	return p.Offsets[group]
}

// Clone returns a copy with its own offsets map.
func (p Params) Clone() Params {
	out := p
	if p.Offsets != nil {
		out.Offsets = make(map[string]float64, len(p.Offsets))
		for k, v := range p.Offsets {
			out.Offsets[k] = v
		}
	}
	return out
}

// Names of the physical parameters, in vector order.
const (
	ParamDeltaT = "delta_t"
	ParamTPhot  = "t_phot"
	ParamF      = "f"
	ParamDeltaF = "delta_f"
	ParamF1     = "f1"
)

var physicalParams = []string{ParamDeltaT, ParamTPhot, ParamF, ParamDeltaF, ParamF1}

// Layout maps Params to and from the flat vectors walked by the sampler.
// The five physical parameters come first, followed by one offset per
// relative-depth group in sorted order.
type Layout struct {
	groups []string
}

// NewLayout builds a layout for the given relative-depth groups.
func NewLayout(groups []string) Layout {
	g := make([]string, len(groups))
	copy(g, groups)
	sort.Strings(g)
	return Layout{groups: g}
}

// Dim returns the vector length.
func (l Layout) Dim() int {
	return len(physicalParams) + len(l.groups)
}

// Groups returns the relative-depth groups in vector order.
func (l Layout) Groups() []string {
	out := make([]string, len(l.groups))
	copy(out, l.groups)
	return out
}

// Names returns the parameter name for each vector slot.
func (l Layout) Names() []string {
	names := make([]string, 0, l.Dim())
	names = append(names, physicalParams...)
	for _, g := range l.groups {
		names = append(names, OffsetName(g))
	}
	return names
}

// OffsetName is the parameter name of a relative-depth group offset.
func OffsetName(group string) string {
	return fmt.Sprintf("offset[%s]", group)
}

// Vector flattens p.
func (l Layout) Vector(p Params) []float64 {
	v := make([]float64, 0, l.Dim())
	v = append(v, p.DeltaT, p.TPhot, p.F, p.DeltaF, p.F1)
	for _, g := range l.groups {
		v = append(v, p.Offsets[g])
	}
	return v
}

// Params unflattens v. It panics if v has the wrong length.
func (l Layout) Params(v []float64) Params {
	if len(v) != l.Dim() {
		panic(fmt.Sprintf("models: vector of length %d does not match layout of dimension %d", len(v), l.Dim()))
	}
	p := Params{DeltaT: v[0], TPhot: v[1], F: v[2], DeltaF: v[3], F1: v[4]}
	if len(l.groups) > 0 {
		p.Offsets = make(map[string]float64, len(l.groups))
		for i, g := range l.groups {
			p.Offsets[g] = v[len(physicalParams)+i]
		}
	}
	return p
}
