package sampler

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/rewired-gh/spotfit/internal/likelihood"
	"github.com/rewired-gh/spotfit/internal/models"
	"github.com/rewired-gh/spotfit/internal/stellar"
)

// Defaults for Settings fields left at their zero value.
const (
	DefaultWalkers         = 32
	DefaultMaxSteps        = 100000
	DefaultStretchScale    = 2.0
	DefaultInitAttempts    = 1000
	DefaultCredibleLevel   = 0.95
	DefaultQuadratureNodes = 48
	defaultOffsetSpread    = 1e-5
)

// Settings are the fixed hyperparameters of one analysis.
type Settings struct {
	Star            stellar.Star
	Bounds          likelihood.Bounds
	IncludePoisson  bool
	Walkers         int
	Seed            uint64
	MaxSteps        int
	StretchScale    float64 // Goodman–Weare a
	InitAttempts    int     // per-walker retries to find a finite start
	CredibleLevel   float64 // mass inside reported intervals
	QuadratureNodes int     // Gauss–Legendre nodes for band integration

	// Guess is the starting point; Spread is the per-parameter standard
	// deviation of the initial walker cloud. Offsets missing from Spread
	// get a small default.
	Guess  models.Params
	Spread models.Params
}

// DefaultSettings returns settings for an early-M dwarf.
func DefaultSettings() Settings {
	return Settings{
		Star:            stellar.Star{StellarRadius: 0.2, PlanetRadius: 1.0, LogG: 5.0},
		Bounds:          likelihood.DefaultBounds(),
		IncludePoisson:  true,
		Walkers:         DefaultWalkers,
		Seed:            42,
		MaxSteps:        DefaultMaxSteps,
		StretchScale:    DefaultStretchScale,
		InitAttempts:    DefaultInitAttempts,
		CredibleLevel:   DefaultCredibleLevel,
		QuadratureNodes: DefaultQuadratureNodes,
		Guess:           models.Params{DeltaT: -300, TPhot: 3300, F: 0.1, DeltaF: 0.02, F1: 0.01},
		Spread:          models.Params{DeltaT: 10, TPhot: 10, F: 0.01, DeltaF: 0.002, F1: 0.001},
	}
}

func (s *Settings) applyDefaults() {
	if s.Walkers == 0 {
		s.Walkers = DefaultWalkers
	}
	if s.MaxSteps == 0 {
		s.MaxSteps = DefaultMaxSteps
	}
	if s.StretchScale == 0 {
		s.StretchScale = DefaultStretchScale
	}
	if s.InitAttempts == 0 {
		s.InitAttempts = DefaultInitAttempts
	}
	if s.CredibleLevel == 0 {
		s.CredibleLevel = DefaultCredibleLevel
	}
	if s.QuadratureNodes == 0 {
		s.QuadratureNodes = DefaultQuadratureNodes
	}
}

// validate checks settings against a parameter layout.
func (s Settings) validate(layout models.Layout) error {
	if err := s.Star.Validate(); err != nil {
		return fmt.Errorf("star: %w", err)
	}
	if err := s.Bounds.Validate(); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	if s.Walkers < 2*layout.Dim() {
		return fmt.Errorf("walkers must be at least %d (twice the %d parameters), got %d", 2*layout.Dim(), layout.Dim(), s.Walkers)
	}
	if s.Walkers%2 != 0 {
		return fmt.Errorf("walkers must be even, got %d", s.Walkers)
	}
	if s.MaxSteps < 1 {
		return errors.New("max steps must be positive")
	}
	if !(s.StretchScale > 1) {
		return errors.New("stretch scale must be greater than 1")
	}
	if s.InitAttempts < 1 {
		return errors.New("init attempts must be positive")
	}
	if !(s.CredibleLevel > 0 && s.CredibleLevel < 1) {
		return errors.New("credible level must be in (0, 1)")
	}
	if s.QuadratureNodes < 1 {
		return errors.New("quadrature nodes must be positive")
	}
	for i, v := range layout.Vector(s.Spread)[:5] {
		if !(v > 0) {
			return fmt.Errorf("spread of %s must be positive", layout.Names()[i])
		}
	}
	return nil
}

// spreadVector returns the initial spread in layout order.
func (s Settings) spreadVector(layout models.Layout) []float64 {
	v := layout.Vector(s.Spread)
	for i := 5; i < len(v); i++ {
		if !(v[i] > 0) {
			v[i] = defaultOffsetSpread
		}
	}
	return v
}

// RunConfig is everything that shapes a chain. Its canonical JSON encoding
// is stored with each cached chain and hashed into the cache key.
type RunConfig struct {
	Label           string            `json:"label"`
	DataDigest      string            `json:"data_digest"`
	BurnIn          int               `json:"burn_in"`
	Production      int               `json:"production"`
	Walkers         int               `json:"walkers"`
	Seed            uint64            `json:"seed"`
	StretchScale    float64           `json:"stretch_scale"`
	QuadratureNodes int               `json:"quadrature_nodes"`
	Star            stellar.Star      `json:"star"`
	Bounds          likelihood.Bounds `json:"bounds"`
	IncludePoisson  bool              `json:"include_poisson"`
	Guess           models.Params     `json:"guess"`
	Spread          models.Params     `json:"spread"`
}

// Canonical returns the stable JSON encoding. Struct fields keep their
// declared order and map keys are sorted by encoding/json.
func (c RunConfig) Canonical() ([]byte, error) {
	return json.Marshal(c)
}

// Fingerprint hashes the canonical encoding.
func (c RunConfig) Fingerprint() (string, []byte, error) {
	b, err := c.Canonical()
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), b, nil
}
