package domain

import (
	"errors"
	"fmt"
)

// ErrCredentialNotFound is returned by repositories when no credential row
// exists for the requested id.
var ErrCredentialNotFound = errors.New("credential not found")

// AccessDenialReason identifies why the access policy refused to resolve a
// credential. Soft denials (ReasonNotRequired, ReasonNotDisplayed) mean the
// credential is legitimately absent; callers typically skip rather than fail.
type AccessDenialReason string

const (
	ReasonNotFound         AccessDenialReason = "credentials not found"
	ReasonTypeNotDefined   AccessDenialReason = "type not defined on step"
	ReasonNotDisplayed     AccessDenialReason = "credentials not displayed"
	ReasonRequiredButUnset AccessDenialReason = "required but unset"
	ReasonNotRequired      AccessDenialReason = "not required"
)

// IsSoft reports whether the denial means "legitimately absent" as opposed to
// a misconfiguration the user must act on.
func (r AccessDenialReason) IsSoft() bool {
	return r == ReasonNotRequired || r == ReasonNotDisplayed
}

type CredentialDecryptionError struct {
	CredentialID string
	Err          error
}

func (e *CredentialDecryptionError) Error() string {
	if e.CredentialID != "" {
		return fmt.Sprintf("credential %s could not be decrypted: %v", e.CredentialID, e.Err)
	}
	return fmt.Sprintf("credential could not be decrypted: %v", e.Err)
}

func (e *CredentialDecryptionError) Unwrap() error { return e.Err }

type AccessDeniedError struct {
	CredentialType string
	Reason         AccessDenialReason
}

func (e *AccessDeniedError) Error() string {
	switch e.Reason {
	case ReasonNotFound:
		return fmt.Sprintf("step does not have credentials of type %q", e.CredentialType)
	case ReasonTypeNotDefined:
		return fmt.Sprintf("credential type %q is not defined on the step", e.CredentialType)
	case ReasonRequiredButUnset:
		return fmt.Sprintf("step does not have credentials set for type %q", e.CredentialType)
	default:
		return fmt.Sprintf("credentials of type %q not available: %s", e.CredentialType, e.Reason)
	}
}

type UnknownCredentialTypeError struct {
	TypeName string
}

func (e *UnknownCredentialTypeError) Error() string {
	return fmt.Sprintf("unknown credential type %q", e.TypeName)
}

type AuthSigningError struct {
	Scheme  AuthSchemeKind
	Message string
	Err     error
}

func (e *AuthSigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to sign request with %s scheme: %s: %v", e.Scheme, e.Message, e.Err)
	}
	return fmt.Sprintf("failed to sign request with %s scheme: %s", e.Scheme, e.Message)
}

func (e *AuthSigningError) Unwrap() error { return e.Err }

type TokenAcquisitionError struct {
	CredentialID string
	GrantType    OAuth2GrantType
	Err          error
}

func (e *TokenAcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire %s token for credential %s: %v", e.GrantType, e.CredentialID, e.Err)
}

func (e *TokenAcquisitionError) Unwrap() error { return e.Err }

// AuthRetryExhaustedError is returned when the retried request failed
// authentication again. The orchestrator never retries past this point.
type AuthRetryExhaustedError struct {
	StatusCode int
}

func (e *AuthRetryExhaustedError) Error() string {
	return fmt.Sprintf("authentication failed again after recovery (status %d)", e.StatusCode)
}

// IsAccessDenied returns the typed denial when err is one.
func IsAccessDenied(err error) (*AccessDeniedError, bool) {
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}
