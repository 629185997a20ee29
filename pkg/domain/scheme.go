package domain

import "context"

type AuthSchemeKind string

const (
	AuthSchemeGeneric AuthSchemeKind = "generic"
	AuthSchemeOAuth1  AuthSchemeKind = "oauth1"
	AuthSchemeOAuth2  AuthSchemeKind = "oauth2"
	AuthSchemeCustom  AuthSchemeKind = "custom"
)

// AuthScheme is the authentication strategy bound to a credential type.
// Exactly one variant field matching Kind is set.
type AuthScheme struct {
	Kind AuthSchemeKind

	Generic *GenericAuthScheme
	OAuth1  *OAuth1Config
	OAuth2  *OAuth2Config
	Custom  *CustomAuthScheme

	// AuthFailureStatus is the response status treated as an authentication
	// failure by the retry orchestrator. Zero means the default (401); some
	// providers signal token expiry differently.
	AuthFailureStatus int

	// RetryOnAuthFailure opts a Custom scheme into the orchestrator's
	// auth-failure recovery cycle. Generic, OAuth1 and OAuth2 schemes
	// participate implicitly.
	RetryOnAuthFailure bool
}

// FailureStatus returns the configured auth-failure status code, defaulting
// to 401.
func (s *AuthScheme) FailureStatus() int {
	if s.AuthFailureStatus != 0 {
		return s.AuthFailureStatus
	}
	return 401
}

// GenericAuthScheme injects credential fields into headers and query
// parameters through opaque string templates. Placeholders use the
// {{$credentials.field}} form; unknown fields resolve to the empty string.
type GenericAuthScheme struct {
	HeaderTemplates map[string]string
	QueryTemplates  map[string]string

	// BasicAuth, when set, populates the request's basic-auth pair from the
	// named credential fields. The same pair feeds the digest-auth recovery
	// branch when the remote answers with a digest challenge.
	BasicAuth *BasicAuthFields
}

type BasicAuthFields struct {
	UsernameField string
	PasswordField string
}

type OAuth1SignatureMethod string

const (
	OAuth1SignatureHMACSHA1   OAuth1SignatureMethod = "HMAC-SHA1"
	OAuth1SignatureHMACSHA256 OAuth1SignatureMethod = "HMAC-SHA256"
	OAuth1SignaturePlaintext  OAuth1SignatureMethod = "PLAINTEXT"
)

// OAuth1Config carries the RFC 5849 signing inputs. Field names holding the
// consumer pair and token pair inside the decrypted data are fixed
// ("consumerKey", "consumerSecret", "oauthToken", "oauthTokenSecret").
type OAuth1Config struct {
	SignatureMethod OAuth1SignatureMethod

	// Realm, when non-empty, is emitted as the first Authorization header
	// parameter.
	Realm string

	// ParameterSeparator joins the header's key="value" pairs. Empty means
	// the conventional ", ".
	ParameterSeparator string

	// OmitTrailingAmpersand drops the "&" + empty token-secret suffix from
	// the signing key when no token secret exists. Some services require
	// this convention, others require the suffix; both produce valid but
	// different signatures, so the choice is explicit configuration.
	OmitTrailingAmpersand bool
}

type OAuth2GrantType string

const (
	GrantAuthorizationCode OAuth2GrantType = "authorizationCode"
	GrantClientCredentials OAuth2GrantType = "clientCredentials"
)

// OAuth2Config describes how to obtain and apply OAuth2 tokens. Client id
// and secret live in the decrypted credential data ("clientId",
// "clientSecret"); the rest is static per credential type.
type OAuth2Config struct {
	GrantType      OAuth2GrantType
	AccessTokenURL string
	Scopes         []string

	// TokenEndpointAuthInBody sends client id/secret as form fields instead
	// of HTTP basic auth on token-endpoint calls.
	TokenEndpointAuthInBody bool

	// KeepBearer controls whether the token-type prefix ("Bearer ") is kept
	// on the Authorization header. False sends the raw token value.
	KeepBearer *bool
}

// SendsBearerPrefix reports whether the Authorization header carries the
// token-type prefix. Defaults to true.
func (c *OAuth2Config) SendsBearerPrefix() bool {
	return c.KeepBearer == nil || *c.KeepBearer
}

// CustomAuthenticateFunc is a node-type-supplied hook that signs a request
// from raw credential fields. The pipeline treats it as an opaque strategy.
type CustomAuthenticateFunc func(ctx context.Context, data DecryptedCredentialData, req *RequestDescriptor) error

// PreAuthenticateFunc mints derived session material (for example a session
// token exchanged from long-lived keys) before signing. The returned fields
// are merged into the decrypted data and persisted.
type PreAuthenticateFunc func(ctx context.Context, data DecryptedCredentialData) (map[string]any, error)

type CustomAuthScheme struct {
	Authenticate CustomAuthenticateFunc
}
