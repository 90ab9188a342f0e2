package engine

import (
	"errors"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/repository"
)

// Outcome classifies the result of a write call.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeValidation  Outcome = "validation"
	OutcomeReferential Outcome = "referential"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeError       Outcome = "error"
)

// ValidOutcomes lists the accepted Outcome values.
var ValidOutcomes = []Outcome{OutcomeOK, OutcomeValidation, OutcomeReferential, OutcomeNotFound, OutcomeError}

// Classify maps err to an Outcome. A violation reported after an advisory
// commit is classified by the violation itself.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case ir.IsValidationFailure(err):
		return OutcomeValidation
	case ir.IsReferentialViolation(err):
		return OutcomeReferential
	case errors.Is(err, repository.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

// Detail is the structured description of a failed call.
type Detail struct {
	Outcome    Outcome `json:"outcome" yaml:"outcome"`
	Rule       string  `json:"rule,omitempty" yaml:"rule,omitempty"`
	Property   string  `json:"property,omitempty" yaml:"property,omitempty"`
	Constraint string  `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Message    string  `json:"message,omitempty" yaml:"message,omitempty"`
	Params     []any   `json:"params,omitempty" yaml:"params,omitempty"`
	Committed  bool    `json:"committed,omitempty" yaml:"committed,omitempty"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Describe returns the Detail of err. A nil err yields OutcomeOK.
func Describe(err error) Detail {
	d := Detail{Outcome: Classify(err)}
	if err == nil {
		return d
	}
	d.Committed = repository.IsCommitted(err)

	var vf *ir.ValidationFailure
	var rv *ir.ReferentialViolation
	switch {
	case errors.As(err, &vf):
		d.Property = vf.Property
		d.Constraint = vf.Constraint
		d.Message = vf.Message
		d.Params = vf.Params
	case errors.As(err, &rv):
		d.Rule = rv.Rule
		d.Message = rv.Message
		d.Params = rv.Params
	default:
		d.Error = err.Error()
	}
	return d
}
