// Package sampler drives an ensemble MCMC exploration of the spot-model
// posterior and caches finished chains by configuration.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/spotfit/internal/dataset"
	"github.com/rewired-gh/spotfit/internal/diagnostics"
	"github.com/rewired-gh/spotfit/internal/likelihood"
	"github.com/rewired-gh/spotfit/internal/logger"
	"github.com/rewired-gh/spotfit/internal/models"
	"github.com/rewired-gh/spotfit/internal/stellar"
	"github.com/rewired-gh/spotfit/internal/storage"
)

// State is the lifecycle stage of an Orchestrator.
type State int

const (
	Uninitialized State = iota
	Configured
	Sampling
	Converged
	Reporting
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Sampling:
		return "sampling"
	case Converged:
		return "converged"
	case Reporting:
		return "reporting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ChainCache persists finished chains by fingerprint. Get returns an error
// wrapping storage.ErrNotFound on a miss and *storage.CacheMismatchError
// when the stored configuration differs from config.
type ChainCache interface {
	Get(ctx context.Context, fingerprint string, config []byte) (*models.Chain, error)
	Put(ctx context.Context, fingerprint string, config []byte, chain *models.Chain) error
}

// Orchestrator owns one analysis: its data, hyperparameters and chain.
// It is not safe for concurrent use; run independent analyses on
// independent orchestrators.
type Orchestrator struct {
	cache ChainCache
	state State

	data     dataset.DataSet
	settings Settings
	model    *stellar.Model
	engine   *likelihood.Engine

	chain     *models.Chain
	fromCache bool
}

// New returns an orchestrator. A nil cache disables caching.
func New(cache ChainCache) *Orchestrator {
	return &Orchestrator{cache: cache}
}

// State returns the current lifecycle stage.
func (o *Orchestrator) State() State {
	return o.state
}

// FromCache reports whether the current chain was loaded rather than sampled.
func (o *Orchestrator) FromCache() bool {
	return o.fromCache
}

// Configure binds a dataset and hyperparameters, discarding any previous
// chain.
func (o *Orchestrator) Configure(ds dataset.DataSet, settings Settings) error {
	if o.state == Sampling {
		return fmt.Errorf("%w: cannot configure while sampling", ErrInvalidState)
	}
	settings.applyDefaults()

	model, err := stellar.New(settings.Star)
	if err != nil {
		return fmt.Errorf("invalid star: %w", err)
	}
	model.Spectrum = stellar.Blackbody{Nodes: settings.QuadratureNodes}

	engine, err := likelihood.New(model, ds, settings.Bounds, settings.IncludePoisson)
	if err != nil {
		return fmt.Errorf("failed to build likelihood: %w", err)
	}
	if err := settings.validate(engine.Layout()); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	o.data = ds
	o.settings = settings
	o.model = model
	o.engine = engine
	o.chain = nil
	o.fromCache = false
	o.state = Configured
	logger.Debug("Configured %q: %d rows, terms %v, %d parameters", ds.Label(), ds.Len(), engine.ActiveTerms(), engine.Layout().Dim())
	return nil
}

// RunConfig returns the configuration that keys a run of the given length.
func (o *Orchestrator) RunConfig(nBurnIn, nProduction int) RunConfig {
	s := o.settings
	return RunConfig{
		Label:           o.data.Label(),
		DataDigest:      o.data.Digest(),
		BurnIn:          nBurnIn,
		Production:      nProduction,
		Walkers:         s.Walkers,
		Seed:            s.Seed,
		StretchScale:    s.StretchScale,
		QuadratureNodes: s.QuadratureNodes,
		Star:            s.Star,
		Bounds:          s.Bounds,
		IncludePoisson:  s.IncludePoisson,
		Guess:           s.Guess,
		Spread:          s.Spread,
	}
}

// Sample runs nBurnIn discarded steps and nProduction retained steps, or
// loads an identical earlier run from the cache. The context bounds cache
// access only; once started the chain runs to completion.
func (o *Orchestrator) Sample(ctx context.Context, nBurnIn, nProduction int) (*models.Chain, error) {
	if o.state == Uninitialized || o.state == Sampling {
		return nil, fmt.Errorf("%w: cannot sample from state %s", ErrInvalidState, o.state)
	}
	if nBurnIn < 0 || nProduction < 1 {
		return nil, fmt.Errorf("need burn-in >= 0 and production >= 1, got %d and %d", nBurnIn, nProduction)
	}
	if nBurnIn+nProduction > o.settings.MaxSteps {
		return nil, fmt.Errorf("%w: %d burn-in + %d production > %d", ErrStepLimit, nBurnIn, nProduction, o.settings.MaxSteps)
	}

	fingerprint, config, err := o.RunConfig(nBurnIn, nProduction).Fingerprint()
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		chain, err := o.cache.Get(ctx, fingerprint, config)
		var mismatch *storage.CacheMismatchError
		switch {
		case err == nil:
			logger.Info("Loaded cached chain %s for %q (%d steps × %d walkers)", fingerprint, o.data.Label(), chain.Steps, chain.Walkers)
			o.chain, o.fromCache, o.state = chain, true, Converged
			return chain, nil
		case errors.Is(err, storage.ErrNotFound):
			logger.Debug("No cached chain %s", fingerprint)
		case errors.As(err, &mismatch):
			logger.Warn("Discarding cached chain: %v", mismatch)
		default:
			return nil, fmt.Errorf("failed to read chain cache: %w", err)
		}
	}

	o.state = Sampling
	start := time.Now()
	chain, err := o.run(nBurnIn, nProduction)
	if err != nil {
		o.state = Configured
		return nil, err
	}
	chain.Fingerprint = fingerprint
	logger.Info("Sampled %q in %v: %d steps × %d walkers, acceptance %.3f",
		o.data.Label(), time.Since(start).Round(time.Millisecond), chain.Steps, chain.Walkers, chain.AcceptanceFraction)

	if o.cache != nil {
		if err := o.cache.Put(ctx, fingerprint, config, chain); err != nil {
			logger.Warn("Failed to cache chain %s: %v", fingerprint, err)
		}
	}
	o.chain, o.fromCache, o.state = chain, false, Converged
	return chain, nil
}

func (o *Orchestrator) run(nBurnIn, nProduction int) (*models.Chain, error) {
	layout := o.engine.Layout()
	rng := rand.New(rand.NewPCG(o.settings.Seed, o.settings.Seed^0x9e3779b97f4a7c15))
	ens := newEnsemble(o.engine.LogProb, o.settings.StretchScale, rng)

	guess := layout.Vector(o.settings.Guess)
	if !ens.initialize(o.settings.Walkers, guess, o.settings.spreadVector(layout), o.settings.InitAttempts) {
		return nil, &DegeneratePosteriorError{
			Reason:      fmt.Sprintf("no finite starting point within %d attempts per walker", o.settings.InitAttempts),
			ActiveTerms: o.engine.ActiveTerms(),
		}
	}

	for i := 0; i < nBurnIn; i++ {
		ens.step()
	}
	logger.Debug("Burn-in done: %d steps, acceptance %.3f", nBurnIn, diagnostics.AcceptanceFraction(ens.accepted, ens.proposed))

	chain := &models.Chain{
		RunID:        uuid.NewString(),
		ParamNames:   layout.Names(),
		Walkers:      o.settings.Walkers,
		Steps:        nProduction,
		Samples:      make([][]float64, 0, nProduction*o.settings.Walkers),
		LogPosterior: make([]float64, 0, nProduction*o.settings.Walkers),
	}
	for i := 0; i < nProduction; i++ {
		ens.step()
		pos, lp := ens.snapshot()
		chain.Samples = append(chain.Samples, pos...)
		chain.LogPosterior = append(chain.LogPosterior, lp...)
	}

	if ens.accepted == 0 {
		return nil, &DegeneratePosteriorError{
			Reason:      fmt.Sprintf("no proposal accepted in %d", ens.proposed),
			ActiveTerms: o.engine.ActiveTerms(),
		}
	}
	chain.AcceptanceFraction = diagnostics.AcceptanceFraction(ens.accepted, ens.proposed)
	chain.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return chain, nil
}

// Chain returns the current chain, or nil before sampling.
func (o *Orchestrator) Chain() *models.Chain {
	return o.chain
}

// Diagnostics reports how well the current chain has mixed.
func (o *Orchestrator) Diagnostics() (diagnostics.Report, error) {
	if err := o.requireChain(); err != nil {
		return diagnostics.Report{}, err
	}
	return diagnostics.Assess(o.chain), nil
}

// requireChain moves a converged orchestrator into Reporting.
func (o *Orchestrator) requireChain() error {
	if o.chain == nil || (o.state != Converged && o.state != Reporting) {
		return fmt.Errorf("%w: no chain available in state %s", ErrInvalidState, o.state)
	}
	o.state = Reporting
	return nil
}

// ActiveTerms names the posterior terms of the configured analysis.
func (o *Orchestrator) ActiveTerms() []string {
	if o.engine == nil {
		return nil
	}
	return o.engine.ActiveTerms()
}

// DataSet returns the configured dataset.
func (o *Orchestrator) DataSet() dataset.DataSet {
	return o.data
}
