package models

import (
	"errors"
	"time"
)

// Chain holds the retained production samples of one sampler run.
// Samples are stored step-major: index step*Walkers+walker.
type Chain struct {
	RunID              string      `json:"run_id"`
	Fingerprint        string      `json:"fingerprint"`
	ParamNames         []string    `json:"param_names"`
	Walkers            int         `json:"walkers"`
	Steps              int         `json:"steps"`
	Samples            [][]float64 `json:"-"`
	LogPosterior       []float64   `json:"-"`
	AcceptanceFraction float64     `json:"acceptance_fraction"`
	CreatedAt          time.Time   `json:"created_at"`
}

// Validate checks the sample matrix against the declared shape.
func (c *Chain) Validate() error {
	if c.Walkers < 1 {
		return errors.New("chain must have at least one walker")
	}
	if c.Steps < 1 {
		return errors.New("chain must have at least one step")
	}
	if len(c.ParamNames) == 0 {
		return errors.New("chain must name its parameters")
	}
	n := c.Walkers * c.Steps
	if len(c.Samples) != n {
		return errors.New("sample count must equal walkers × steps")
	}
	if len(c.LogPosterior) != n {
		return errors.New("log-posterior count must equal walkers × steps")
	}
	for _, s := range c.Samples {
		if len(s) != len(c.ParamNames) {
			return errors.New("sample width must equal parameter count")
		}
	}
	return nil
}

// Column returns every retained value of parameter i.
func (c *Chain) Column(i int) []float64 {
	out := make([]float64, len(c.Samples))
	for k, s := range c.Samples {
		out[k] = s[i]
	}
	return out
}

// WalkerTrace returns the production trace of parameter i for one walker.
func (c *Chain) WalkerTrace(walker, i int) []float64 {
	out := make([]float64, c.Steps)
	for step := 0; step < c.Steps; step++ {
		out[step] = c.Samples[step*c.Walkers+walker][i]
	}
	return out
}

// ParamSummary is the marginal posterior summary of one parameter.
type ParamSummary struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Level  float64 `json:"level"` // credible mass between Lower and Upper
}

// Contains reports whether v lies inside the credible interval.
func (s ParamSummary) Contains(v float64) bool {
	return v >= s.Lower && v <= s.Upper
}
