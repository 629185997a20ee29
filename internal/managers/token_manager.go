package managers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds one token-endpoint exchange independently of the
// caller's deadline, since a shared refresh must not die with the first
// caller that gives up.
const refreshTimeout = 30 * time.Second

// OAuth2TokenManager obtains, refreshes and persists OAuth2 token material.
// Refreshes are single-flighted per credential id: the first caller to
// observe an auth failure performs the token-endpoint call and concurrent
// callers share its result.
type OAuth2TokenManager struct {
	credentials domain.CredentialManager
	httpClient  *http.Client
	group       singleflight.Group
}

func NewOAuth2TokenManager(credentials domain.CredentialManager, httpClient *http.Client) *OAuth2TokenManager {
	return &OAuth2TokenManager{
		credentials: credentials,
		httpClient:  httpClient,
	}
}

// EnsureToken returns the cached token material, acquiring a first token for
// the client-credentials grant when none is cached. That acquisition is not
// 401-driven; client-credentials tokens have no separate connect step. An
// authorization-code credential with no cached token is a hard error: the
// pipeline never initiates an interactive consent flow.
func (m *OAuth2TokenManager) EnsureToken(ctx context.Context, credentialID string, config *domain.OAuth2Config, data domain.DecryptedCredentialData) (domain.OAuth2TokenData, error) {
	if token, ok := data.TokenData(); ok {
		return token, nil
	}

	switch config.GrantType {
	case domain.GrantClientCredentials:
		return m.exchange(ctx, credentialID, config, data)
	case domain.GrantAuthorizationCode:
		return domain.OAuth2TokenData{}, &domain.TokenAcquisitionError{
			CredentialID: credentialID,
			GrantType:    config.GrantType,
			Err:          errors.New("no token cached; the credential has not completed its consent flow"),
		}
	default:
		return domain.OAuth2TokenData{}, &domain.TokenAcquisitionError{
			CredentialID: credentialID,
			GrantType:    config.GrantType,
			Err:          errors.New("unsupported grant type"),
		}
	}
}

// Refresh obtains fresh token material after an auth failure and persists it
// through the credential store. Persistence is best-effort: a store failure
// is logged and the fresh token is still handed to the in-flight retry.
func (m *OAuth2TokenManager) Refresh(ctx context.Context, credentialID string, config *domain.OAuth2Config, data domain.DecryptedCredentialData) (domain.OAuth2TokenData, error) {
	return m.exchange(ctx, credentialID, config, data)
}

func (m *OAuth2TokenManager) exchange(ctx context.Context, credentialID string, config *domain.OAuth2Config, data domain.DecryptedCredentialData) (domain.OAuth2TokenData, error) {
	ch := m.group.DoChan(credentialID, func() (any, error) {
		// Detached from the triggering caller's cancellation: other callers
		// may be waiting on this flight.
		exchangeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		token, err := m.acquire(exchangeCtx, credentialID, config, data)
		if err != nil {
			return nil, err
		}

		m.persist(exchangeCtx, credentialID, data, token)

		return token, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return domain.OAuth2TokenData{}, result.Err
		}
		return result.Val.(domain.OAuth2TokenData), nil
	case <-ctx.Done():
		return domain.OAuth2TokenData{}, ctx.Err()
	}
}

func (m *OAuth2TokenManager) acquire(ctx context.Context, credentialID string, config *domain.OAuth2Config, data domain.DecryptedCredentialData) (domain.OAuth2TokenData, error) {
	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}

	clientID, _ := data["clientId"].(string)
	clientSecret, _ := data["clientSecret"].(string)

	authStyle := oauth2.AuthStyleInHeader
	if config.TokenEndpointAuthInBody {
		authStyle = oauth2.AuthStyleInParams
	}

	var (
		token *oauth2.Token
		err   error
	)

	switch config.GrantType {
	case domain.GrantClientCredentials:
		// Re-acquisition, not a refresh-token grant.
		cc := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     config.AccessTokenURL,
			Scopes:       config.Scopes,
			AuthStyle:    authStyle,
		}
		token, err = cc.Token(ctx)

	case domain.GrantAuthorizationCode:
		current, ok := data.TokenData()
		if !ok || current.RefreshToken == "" {
			return domain.OAuth2TokenData{}, &domain.TokenAcquisitionError{
				CredentialID: credentialID,
				GrantType:    config.GrantType,
				Err:          errors.New("no refresh token available"),
			}
		}

		oc := oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  config.AccessTokenURL,
				AuthStyle: authStyle,
			},
		}
		token, err = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()

	default:
		return domain.OAuth2TokenData{}, &domain.TokenAcquisitionError{
			CredentialID: credentialID,
			GrantType:    config.GrantType,
			Err:          errors.New("unsupported grant type"),
		}
	}

	if err != nil {
		return domain.OAuth2TokenData{}, &domain.TokenAcquisitionError{
			CredentialID: credentialID,
			GrantType:    config.GrantType,
			Err:          err,
		}
	}

	return m.convert(token, data), nil
}

// convert replaces token data wholesale, except that a refresh response
// omitting a refresh token keeps the prior one.
func (m *OAuth2TokenManager) convert(token *oauth2.Token, data domain.DecryptedCredentialData) domain.OAuth2TokenData {
	out := domain.OAuth2TokenData{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}

	if out.RefreshToken == "" {
		if current, ok := data.TokenData(); ok {
			out.RefreshToken = current.RefreshToken
		}
	}

	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		out.ExpiresAt = &expiry
	}

	return out
}

func (m *OAuth2TokenManager) persist(ctx context.Context, credentialID string, data domain.DecryptedCredentialData, token domain.OAuth2TokenData) {
	updated := data.Clone()
	updated[domain.FieldTokenData] = token.AsMap()

	if err := m.credentials.UpdateCredentialData(ctx, credentialID, updated); err != nil {
		// Best-effort: the in-flight retry still uses the fresh token, but a
		// later call may redo this refresh against a stale stored token.
		log.Warn().
			Err(err).
			Str("credential_id", credentialID).
			Msg("Failed to persist refreshed token material")
	}
}
