package auth

import (
	"github.com/yksirotta/credflow/pkg/domain"
)

// AuthorizeParams are the inputs to one access decision. Everything is
// supplied by the caller; Authorize performs no I/O.
type AuthorizeParams struct {
	StepDescriptors []domain.StepCredentialDescriptor
	BindingType     string

	// HasBinding reports whether the step declares a concrete credential id
	// for BindingType.
	HasBinding bool

	// IsFullAccessStep marks step kinds allow-listed to use arbitrary
	// credential types (for example a generic HTTP request step).
	IsFullAccessStep bool

	Parameters map[string]any
	Display    domain.DisplayConditionEvaluator
}

// Authorize decides whether a step may resolve a credential of the requested
// type. Decisions are computed fresh per call; step parameters can change
// between invocations, so nothing here may be cached.
func Authorize(p AuthorizeParams) domain.AccessDecision {
	// Full-access steps may use any type, but an absent binding still reads
	// as "not found" so the user sees the same message as everywhere else.
	if p.IsFullAccessStep {
		if !p.HasBinding {
			return domain.Deny(domain.ReasonNotFound)
		}
		return domain.Allow()
	}

	descriptor, ok := findDescriptor(p.StepDescriptors, p.BindingType)
	if !ok {
		return domain.Deny(domain.ReasonTypeNotDefined)
	}

	if descriptor.DisplayCondition != nil && p.Display != nil {
		if !p.Display.Evaluate(descriptor.DisplayCondition, p.Parameters) {
			return domain.Deny(domain.ReasonNotDisplayed)
		}
	}

	if !p.HasBinding {
		if descriptor.Required {
			return domain.Deny(domain.ReasonRequiredButUnset)
		}
		return domain.Deny(domain.ReasonNotRequired)
	}

	return domain.Allow()
}

func findDescriptor(descriptors []domain.StepCredentialDescriptor, name string) (domain.StepCredentialDescriptor, bool) {
	for _, d := range descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return domain.StepCredentialDescriptor{}, false
}
