package sampler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDegeneratePosterior marks a run that could not find or move
	// through any finite-posterior region.
	ErrDegeneratePosterior = errors.New("degenerate posterior")
	// ErrStepLimit marks a request for more steps than Settings.MaxSteps.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrInvalidState marks an operation called in the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid sampler state")
)

// DegeneratePosteriorError reports which terms were active when the
// posterior turned out to be −Inf everywhere the walkers looked.
type DegeneratePosteriorError struct {
	Reason      string
	ActiveTerms []string
}

func (e *DegeneratePosteriorError) Error() string {
	return fmt.Sprintf("degenerate posterior: %s (active terms: %s)", e.Reason, strings.Join(e.ActiveTerms, ", "))
}

func (e *DegeneratePosteriorError) Unwrap() error {
	return ErrDegeneratePosterior
}
