// Package likelihood turns a DataSet and a stellar model into a log-posterior.
//
// The posterior is a sum of independent terms in log space:
//
//	ln P = bounds + Poisson prior + Σ_categories Σ_rows ln N(obs | pred, σ)
//
// Hard bounds and model predictions outside the physical domain give −Inf
// rather than an error, so the sampler can always evaluate any proposal.
package likelihood

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/spotfit/internal/dataset"
	"github.com/rewired-gh/spotfit/internal/models"
)

// lnSqrt2Pi is ln(√(2π)).
var lnSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// Bounds are the hard prior limits.
type Bounds struct {
	MaxTemperatureOffset float64 `json:"max_temperature_offset"` // |DeltaT| limit, K
	MinTemperature       float64 `json:"min_temperature"`        // TPhot lower limit, K
	MaxTemperature       float64 `json:"max_temperature"`        // TPhot upper limit, K
	MinSpotFraction      float64 `json:"min_spot_fraction"`      // f1 lower limit
	MaxSpotFraction      float64 `json:"max_spot_fraction"`      // f1 upper limit
	MaxDepthOffset       float64 `json:"max_depth_offset"`       // |offset| limit
}

// DefaultBounds are broad limits suited to M and K dwarfs.
func DefaultBounds() Bounds {
	return Bounds{
		MaxTemperatureOffset: 3000,
		MinTemperature:       2300,
		MaxTemperature:       7000,
		MinSpotFraction:      1e-4,
		MaxSpotFraction:      0.5,
		MaxDepthOffset:       0.01,
	}
}

// Validate checks that the bounds describe a non-empty region.
func (b Bounds) Validate() error {
	if !(b.MaxTemperatureOffset > 0) {
		return errors.New("max temperature offset must be positive")
	}
	if !(b.MinTemperature > 0) || !(b.MaxTemperature > b.MinTemperature) {
		return errors.New("temperature bounds must satisfy 0 < min < max")
	}
	if !(b.MinSpotFraction > 0) || !(b.MaxSpotFraction >= b.MinSpotFraction) || b.MaxSpotFraction > 1 {
		return errors.New("spot fraction bounds must satisfy 0 < min <= max <= 1")
	}
	if b.MaxDepthOffset < 0 {
		return errors.New("max depth offset must not be negative")
	}
	return nil
}

// Contains reports whether p lies inside the bounds.
func (b Bounds) Contains(p models.Params) bool {
	if !(math.Abs(p.DeltaT) <= b.MaxTemperatureOffset) {
		return false
	}
	if !(p.TPhot >= b.MinTemperature && p.TPhot <= b.MaxTemperature) {
		return false
	}
	if !(p.F >= 0 && p.F <= 1) || !(p.DeltaF >= 0 && p.DeltaF <= 1) {
		return false
	}
	if !(p.F1 >= b.MinSpotFraction && p.F1 <= b.MaxSpotFraction) {
		return false
	}
	for _, o := range p.Offsets {
		if !(math.Abs(o) <= b.MaxDepthOffset) {
			return false
		}
	}
	return true
}

// Engine evaluates the log-posterior of one dataset.
type Engine struct {
	model          dataset.Predictor
	data           dataset.DataSet
	bounds         Bounds
	includePoisson bool
	layout         models.Layout
}

// New builds an engine. The dataset must have at least one row.
func New(model dataset.Predictor, ds dataset.DataSet, bounds Bounds, includePoisson bool) (*Engine, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if ds.Empty() {
		return nil, fmt.Errorf("dataset %q has no rows", ds.Label())
	}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bounds: %w", err)
	}
	return &Engine{
		model:          model,
		data:           ds,
		bounds:         bounds,
		includePoisson: includePoisson,
		layout:         models.NewLayout(ds.Groups()),
	}, nil
}

// Layout returns the vector layout of this engine's parameters.
func (e *Engine) Layout() models.Layout {
	return e.layout
}

// Bounds returns the hard limits in force.
func (e *Engine) Bounds() Bounds {
	return e.bounds
}

// ActiveTerms names the categories and priors that contribute.
func (e *Engine) ActiveTerms() []string {
	terms := []string{"bounds"}
	if e.includePoisson {
		terms = append(terms, "poisson")
	}
	for _, c := range e.data.Categories() {
		terms = append(terms, string(c))
	}
	return terms
}

// LogPrior returns the bound and Poisson prior terms.
func (e *Engine) LogPrior(p models.Params) float64 {
	if !e.bounds.Contains(p) {
		return math.Inf(-1)
	}
	if e.includePoisson {
		return PoissonPrior(p.F, p.DeltaF, p.F1)
	}
	return 0
}

// LogLikelihood sums the Gaussian log-likelihood of every row. A row whose
// prediction fails contributes −Inf.
func (e *Engine) LogLikelihood(p models.Params) float64 {
	var total float64
	for _, c := range e.data.Categories() {
		for _, r := range e.data.Rows(c) {
			pred, err := r.Predict(e.model, p)
			if err != nil || math.IsNaN(pred) {
				return math.Inf(-1)
			}
			obs, sigma := r.Observation()
			total += GaussianLogPDF(obs, pred, sigma)
		}
	}
	return total
}

// LogPosterior returns ln P(p | data) up to a constant.
func (e *Engine) LogPosterior(p models.Params) float64 {
	lp := e.LogPrior(p)
	if math.IsInf(lp, -1) || math.IsNaN(lp) {
		return math.Inf(-1)
	}
	ll := e.LogLikelihood(p)
	if math.IsNaN(ll) {
		return math.Inf(-1)
	}
	return lp + ll
}

// LogProb is LogPosterior on a flat vector in Layout order.
func (e *Engine) LogProb(v []float64) float64 {
	return e.LogPosterior(e.layout.Params(v))
}

// GaussianLogPDF is ln N(obs | pred, σ).
func GaussianLogPDF(obs, pred, sigma float64) float64 {
	z := (obs - pred) / sigma
	return -0.5*z*z - math.Log(sigma) - lnSqrt2Pi
}

// poissonLogWidth is the log-space scatter of Δf about the Poisson scale.
const poissonLogWidth = 0.5

// PoissonPrior couples the variable covering fraction to the mean one.
//
// With spots of area f1 and mean coverage f, the expected spot count is
// N = f/f1, so Poisson fluctuations in the count move the covering fraction
// by about √N·f1 = √(f·f1). Δf is log-normal about that scale:
//
//	ln p = −½(ln(Δf/√(f·f1))/w)² − ln(Δf·w·√(2π))
//
// As a function of f1 this is Gaussian in ln f1 centred on Δf²/f, so f1 is
// identified by f and Δf alone. Δf ≤ 0 or f ≤ 0 gives −Inf.
func PoissonPrior(f, deltaF, f1 float64) float64 {
	sigma := math.Sqrt(f * f1)
	if !(sigma > 0) || !(deltaF > 0) {
		return math.Inf(-1)
	}
	z := math.Log(deltaF/sigma) / poissonLogWidth
	return -0.5*z*z - math.Log(deltaF*poissonLogWidth) - lnSqrt2Pi
}
