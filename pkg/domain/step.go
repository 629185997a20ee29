package domain

// CredentialTypeDescriptor is static registry metadata for a credential
// type. ParentTypeNames models inheritance (a vendor OAuth2 type extending
// the generic one); resolution walks parents breadth-first with a visited
// set so a cyclic chain cannot loop.
type CredentialTypeDescriptor struct {
	Name            string
	ParentTypeNames []string

	// Scheme is the concrete scheme declaration, nil when inherited from a
	// parent type.
	Scheme *AuthScheme

	// Authenticate overrides any inherited scheme when present.
	Authenticate CustomAuthenticateFunc

	// PreAuthenticate runs before signing to mint derived session material.
	PreAuthenticate PreAuthenticateFunc
}

// NodeTypeRegistry is the node-type metadata collaborator.
type NodeTypeRegistry interface {
	GetCredentialTypeDescriptor(name string) (*CredentialTypeDescriptor, bool)
	IsFullAccessStepKind(stepKind string) bool
}

// StepCredentialDescriptor is one credential requirement declared by a step
// kind.
type StepCredentialDescriptor struct {
	Name     string
	Required bool

	// DisplayCondition gates the requirement on the step's current
	// parameter values. Opaque here; the caller's evaluator interprets it.
	DisplayCondition *DisplayCondition
}

// DisplayCondition is an opaque predicate over step parameters, owned by the
// display-condition evaluator collaborator.
type DisplayCondition struct {
	Raw any
}

// DisplayConditionEvaluator decides whether a conditionally-displayed
// credential requirement is active for the step's current parameters.
type DisplayConditionEvaluator interface {
	Evaluate(condition *DisplayCondition, parameters map[string]any) bool
}

// StepContext is everything the pipeline needs to know about the calling
// workflow step.
type StepContext struct {
	StepKind string

	// CredentialDescriptors are the credential requirements the step kind
	// declares.
	CredentialDescriptors []StepCredentialDescriptor

	// Bindings maps a credential type name to the bound credential id.
	Bindings map[string]string

	// Parameters are the step's current parameter values, consulted only
	// through the display-condition evaluator.
	Parameters map[string]any
}

// AccessDecision is the access policy's verdict. Computed fresh per call;
// never cached, because step parameters can change between invocations.
type AccessDecision struct {
	Allowed bool
	Reason  AccessDenialReason
}

func Allow() AccessDecision {
	return AccessDecision{Allowed: true}
}

func Deny(reason AccessDenialReason) AccessDecision {
	return AccessDecision{Reason: reason}
}
