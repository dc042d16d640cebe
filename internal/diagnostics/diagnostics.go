// Package diagnostics measures how well an ensemble chain has mixed.
//
// Three figures are reported per run:
//
//	acceptance = accepted proposals / total proposals
//	τ          = 1 + 2 Σ_{t=1}^{M} ρ(t), walker-averaged autocorrelation ρ, Sokal window M ≥ c·τ
//	R̂          = √(((n−1)/n·W + B/n) / W), Gelman–Rubin across walkers
//
// A chain is considered converged when every parameter has R̂ below
// MaxRHat and the chain is at least MinTauMultiple autocorrelation times long.
package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/spotfit/internal/models"
)

// Convergence thresholds.
const (
	MaxRHat        = 1.1
	MinTauMultiple = 50.0
	sokalWindow    = 5.0
)

// ParamReport is the mixing summary of one parameter.
type ParamReport struct {
	Name string  `json:"name"`
	Tau  float64 `json:"tau"`
	RHat float64 `json:"rhat"`
}

// Report is the mixing summary of a chain.
type Report struct {
	AcceptanceFraction float64       `json:"acceptance_fraction"`
	Params             []ParamReport `json:"params"`
	MaxTau             float64       `json:"max_tau"`
	MaxRHat            float64       `json:"max_rhat"`
	Converged          bool          `json:"converged"`
	Warnings           []string      `json:"warnings,omitempty"`
}

// AcceptanceFraction returns accepted/proposed, or 0 with no proposals.
func AcceptanceFraction(accepted, proposed int) float64 {
	if proposed <= 0 {
		return 0
	}
	return float64(accepted) / float64(proposed)
}

// autocovariance returns the lag-t autocovariance of a centred trace.
func autocovariance(centred []float64, lag int) float64 {
	n := len(centred)
	if lag >= n {
		return 0
	}
	var sum float64
	for i := 0; i+lag < n; i++ {
		sum += centred[i] * centred[i+lag]
	}
	return sum / float64(n)
}

// AutocorrTime estimates the integrated autocorrelation time from one or
// more traces of equal length, averaging their autocorrelation functions.
// Returns NaN when the traces carry no variance.
func AutocorrTime(traces [][]float64) float64 {
	if len(traces) == 0 || len(traces[0]) < 2 {
		return math.NaN()
	}
	n := len(traces[0])
	centred := make([][]float64, len(traces))
	var c0 float64
	for k, tr := range traces {
		mean := stat.Mean(tr, nil)
		c := make([]float64, len(tr))
		for i, v := range tr {
			c[i] = v - mean
		}
		centred[k] = c
		c0 += autocovariance(c, 0)
	}
	if !(c0 > 0) {
		return math.NaN()
	}

	tau := 1.0
	for lag := 1; lag < n; lag++ {
		var ct float64
		for _, c := range centred {
			ct += autocovariance(c, lag)
		}
		tau += 2 * ct / c0
		if float64(lag) >= sokalWindow*tau {
			break
		}
	}
	return tau
}

// GelmanRubin returns the potential scale reduction factor across traces.
// Returns NaN with fewer than two traces or two steps, or no within-trace
// variance.
func GelmanRubin(traces [][]float64) float64 {
	m := len(traces)
	if m < 2 || len(traces[0]) < 2 {
		return math.NaN()
	}
	n := float64(len(traces[0]))
	means := make([]float64, m)
	vars := make([]float64, m)
	for k, tr := range traces {
		means[k], vars[k] = stat.MeanVariance(tr, nil)
	}
	w := stat.Mean(vars, nil)
	if !(w > 0) {
		return math.NaN()
	}
	b := n * stat.Variance(means, nil)
	pooled := (n-1)/n*w + b/n
	return math.Sqrt(pooled / w)
}

// Assess computes the mixing report of a chain.
func Assess(chain *models.Chain) Report {
	r := Report{AcceptanceFraction: chain.AcceptanceFraction, Converged: true}
	for i, name := range chain.ParamNames {
		traces := make([][]float64, chain.Walkers)
		for w := 0; w < chain.Walkers; w++ {
			traces[w] = chain.WalkerTrace(w, i)
		}
		pr := ParamReport{Name: name, Tau: AutocorrTime(traces), RHat: GelmanRubin(traces)}
		r.Params = append(r.Params, pr)

		switch {
		case math.IsNaN(pr.Tau):
			r.Converged = false
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: walkers never moved", name))
			continue
		case float64(chain.Steps) < MinTauMultiple*pr.Tau:
			r.Converged = false
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %d steps is less than %.0f×τ (τ=%.1f)", name, chain.Steps, MinTauMultiple, pr.Tau))
		}
		if pr.RHat > MaxRHat {
			r.Converged = false
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: R-hat %.3f exceeds %.2f", name, pr.RHat, MaxRHat))
		}
		r.MaxTau = math.Max(r.MaxTau, pr.Tau)
		if !math.IsNaN(pr.RHat) {
			r.MaxRHat = math.Max(r.MaxRHat, pr.RHat)
		}
	}
	if r.AcceptanceFraction < 0.1 || r.AcceptanceFraction > 0.8 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("acceptance fraction %.3f is outside [0.1, 0.8]", r.AcceptanceFraction))
	}
	return r
}
