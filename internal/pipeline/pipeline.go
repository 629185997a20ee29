package pipeline

import (
	"context"
	"fmt"

	"github.com/yksirotta/credflow/internal/auth"
	"github.com/yksirotta/credflow/internal/managers"
	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/rs/zerolog/log"
)

// Pipeline is the single entry point a workflow-step runtime uses to execute
// an authenticated call. It checks the access policy, decrypts the bound
// credential, resolves the auth scheme, signs the request and sends it with
// one-shot auth recovery.
type Pipeline struct {
	credentials  domain.CredentialManager
	registry     domain.NodeTypeRegistry
	tokens       *managers.OAuth2TokenManager
	display      domain.DisplayConditionEvaluator
	orchestrator *Orchestrator
}

type Dependencies struct {
	CredentialManager domain.CredentialManager
	Registry          domain.NodeTypeRegistry
	Transport         domain.Transport
	TokenManager      *managers.OAuth2TokenManager

	// DisplayEvaluator is optional; without one, display-gated credential
	// requirements are treated as displayed.
	DisplayEvaluator domain.DisplayConditionEvaluator
}

func NewPipeline(deps Dependencies) *Pipeline {
	return &Pipeline{
		credentials:  deps.CredentialManager,
		registry:     deps.Registry,
		tokens:       deps.TokenManager,
		display:      deps.DisplayEvaluator,
		orchestrator: NewOrchestrator(deps.Transport),
	}
}

// Decrypt exposes raw field access for custom authenticate hooks that need
// it outside the standard schemes.
func (p *Pipeline) Decrypt(ctx context.Context, credentialID string) (domain.DecryptedCredentialData, error) {
	return p.credentials.GetDecryptedCredential(ctx, credentialID)
}

// ResolveAndCall authorizes the step's use of the credential type, signs the
// request and executes it with the retry orchestrator. Denials return an
// AccessDeniedError before any store or transport access beyond the policy
// inputs.
func (p *Pipeline) ResolveAndCall(ctx context.Context, step domain.StepContext, credentialTypeName string, req *domain.RequestDescriptor) (*domain.Response, error) {
	credentialID, hasBinding := step.Bindings[credentialTypeName]
	hasBinding = hasBinding && credentialID != ""

	decision := auth.Authorize(auth.AuthorizeParams{
		StepDescriptors:  step.CredentialDescriptors,
		BindingType:      credentialTypeName,
		HasBinding:       hasBinding,
		IsFullAccessStep: p.registry.IsFullAccessStepKind(step.StepKind),
		Parameters:       step.Parameters,
		Display:          p.display,
	})
	if !decision.Allowed {
		return nil, &domain.AccessDeniedError{CredentialType: credentialTypeName, Reason: decision.Reason}
	}

	data, err := p.credentials.GetDecryptedCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	scheme, err := auth.ResolveScheme(credentialTypeName, p.registry)
	if err != nil {
		return nil, err
	}

	if preAuth := auth.FindPreAuthenticate(credentialTypeName, p.registry); preAuth != nil {
		data, err = p.runPreAuthentication(ctx, credentialID, data, preAuth)
		if err != nil {
			return nil, err
		}
	}

	signer := &requestSigner{scheme: scheme, data: data}

	// Client-credentials tokens are acquired up front when none is cached;
	// authorization-code credentials must already carry one.
	if scheme.Kind == domain.AuthSchemeOAuth2 {
		token, err := p.tokens.EnsureToken(ctx, credentialID, scheme.OAuth2, data)
		if err != nil {
			return nil, err
		}
		signer.token = token
	}

	recovery := p.recoveryFor(scheme, credentialID, signer, req)

	return p.orchestrator.Execute(ctx, req, scheme.FailureStatus(), signer.sign, recovery)
}

// runPreAuthentication mints derived session material and persists it
// best-effort; a store failure must not block the call that already has the
// material in hand.
func (p *Pipeline) runPreAuthentication(ctx context.Context, credentialID string, data domain.DecryptedCredentialData, preAuth domain.PreAuthenticateFunc) (domain.DecryptedCredentialData, error) {
	minted, err := preAuth(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("preauthentication failed for credential %s: %w", credentialID, err)
	}
	if len(minted) == 0 {
		return data, nil
	}

	updated := data.Clone()
	for key, value := range minted {
		updated[key] = value
	}

	if err := p.credentials.UpdateCredentialData(ctx, credentialID, updated); err != nil {
		log.Warn().
			Err(err).
			Str("credential_id", credentialID).
			Msg("Failed to persist preauthentication session material")
	}

	return updated, nil
}

// recoveryFor picks the scheme's auth-failure recovery strategy, or nil when
// none exists.
func (p *Pipeline) recoveryFor(scheme *domain.AuthScheme, credentialID string, signer *requestSigner, original *domain.RequestDescriptor) RecoverFunc {
	switch scheme.Kind {
	case domain.AuthSchemeOAuth2:
		return func(ctx context.Context, failed *domain.Response) (bool, error) {
			token, err := p.tokens.Refresh(ctx, credentialID, scheme.OAuth2, signer.data)
			if err != nil {
				return false, err
			}
			signer.token = token
			return true, nil
		}

	case domain.AuthSchemeGeneric:
		if scheme.Generic == nil || scheme.Generic.BasicAuth == nil {
			return nil
		}
		basicAuth := scheme.Generic.BasicAuth
		return func(ctx context.Context, failed *domain.Response) (bool, error) {
			challenge, ok := auth.ParseDigestChallenge(failed.Headers.Get("WWW-Authenticate"))
			if !ok {
				return false, nil
			}

			pair := &domain.BasicAuthPair{
				Username: signer.fieldValue(basicAuth.UsernameField),
				Password: signer.fieldValue(basicAuth.PasswordField),
			}

			responder := &auth.DigestResponder{}
			header, err := responder.Authorization(challenge, pair, original.Method, original.URL)
			if err != nil {
				return false, &domain.AuthSigningError{Scheme: domain.AuthSchemeGeneric, Message: "failed to answer digest challenge", Err: err}
			}

			signer.digestHeader = header
			return true, nil
		}

	case domain.AuthSchemeCustom:
		if !scheme.RetryOnAuthFailure {
			return nil
		}
		// Re-running the custom hook is the recovery; hooks that cache
		// session material are expected to re-mint on a fresh signing pass.
		return func(ctx context.Context, failed *domain.Response) (bool, error) {
			return true, nil
		}

	default:
		return nil
	}
}

// requestSigner carries the per-call signing state. The recovery callbacks
// mutate it (fresh token, digest header) between the first attempt and the
// retry.
type requestSigner struct {
	scheme       *domain.AuthScheme
	data         domain.DecryptedCredentialData
	token        domain.OAuth2TokenData
	digestHeader string
}

func (s *requestSigner) sign(ctx context.Context, req *domain.RequestDescriptor) error {
	var err error

	switch s.scheme.Kind {
	case domain.AuthSchemeGeneric:
		err = auth.AuthenticateGeneric(s.scheme.Generic, s.data, req)
	case domain.AuthSchemeOAuth1:
		err = auth.NewOAuth1Signer(s.scheme.OAuth1).Authenticate(s.data, req)
	case domain.AuthSchemeOAuth2:
		err = auth.AuthenticateOAuth2(s.scheme.OAuth2, s.token, req)
	case domain.AuthSchemeCustom:
		err = s.scheme.Custom.Authenticate(ctx, s.data, req)
	default:
		err = &domain.AuthSigningError{Scheme: s.scheme.Kind, Message: "unsupported scheme"}
	}
	if err != nil {
		return err
	}

	if s.digestHeader != "" {
		req.SetHeader("Authorization", s.digestHeader)
	}

	return nil
}

func (s *requestSigner) fieldValue(field string) string {
	if value, ok := s.data[field].(string); ok {
		return value
	}
	return ""
}
