package managers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yksirotta/credflow/internal/cipher"
	"github.com/yksirotta/credflow/internal/repositories"
	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCredentialManager(t *testing.T) (domain.CredentialManager, *repositories.MemoryCredentialRepository) {
	t.Helper()

	key, err := cipher.GenerateKey()
	require.NoError(t, err)
	c, err := cipher.NewCipher(key)
	require.NoError(t, err)

	repo := repositories.NewMemoryCredentialRepository()

	return NewCredentialManager(repo, c), repo
}

func seedCredential(t *testing.T, manager domain.CredentialManager, repo *repositories.MemoryCredentialRepository, typeName string, data domain.DecryptedCredentialData) string {
	t.Helper()

	id := uuid.NewString()
	require.NoError(t, repo.Save(context.Background(), domain.Credential{ID: id, Name: "test", TypeName: typeName}))
	require.NoError(t, manager.UpdateCredentialData(context.Background(), id, data))

	return id
}

func tokenEndpoint(t *testing.T, calls *atomic.Int64, delay time.Duration, response map[string]any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestEnsureToken_ClientCredentialsAcquiresOnce(t *testing.T) {
	manager, repo := newTestCredentialManager(t)

	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, 0, map[string]any{"access_token": "T1", "token_type": "Bearer"})

	data := domain.DecryptedCredentialData{"clientId": "id", "clientSecret": "secret"}
	credentialID := seedCredential(t, manager, repo, "serviceOAuth2Api", data)

	tokens := NewOAuth2TokenManager(manager, server.Client())
	config := &domain.OAuth2Config{GrantType: domain.GrantClientCredentials, AccessTokenURL: server.URL}

	token, err := tokens.EnsureToken(context.Background(), credentialID, config, data)
	require.NoError(t, err)
	assert.Equal(t, "T1", token.AccessToken)
	assert.Equal(t, int64(1), calls.Load())

	// Cached token data short-circuits the endpoint entirely.
	cached := domain.DecryptedCredentialData{
		domain.FieldTokenData: map[string]any{"access_token": "T1"},
	}
	token, err = tokens.EnsureToken(context.Background(), credentialID, config, cached)
	require.NoError(t, err)
	assert.Equal(t, "T1", token.AccessToken)
	assert.Equal(t, int64(1), calls.Load())
}

func TestEnsureToken_AuthorizationCodeWithoutTokenIsHardError(t *testing.T) {
	manager, repo := newTestCredentialManager(t)
	data := domain.DecryptedCredentialData{"clientId": "id", "clientSecret": "secret"}
	credentialID := seedCredential(t, manager, repo, "vendorOAuth2Api", data)

	tokens := NewOAuth2TokenManager(manager, nil)
	config := &domain.OAuth2Config{GrantType: domain.GrantAuthorizationCode, AccessTokenURL: "https://example.com/token"}

	_, err := tokens.EnsureToken(context.Background(), credentialID, config, data)

	var acquisitionErr *domain.TokenAcquisitionError
	require.ErrorAs(t, err, &acquisitionErr)
}

func TestRefresh_PersistsAndPreservesRefreshToken(t *testing.T) {
	manager, repo := newTestCredentialManager(t)

	var calls atomic.Int64
	// Refresh response deliberately omits refresh_token.
	server := tokenEndpoint(t, &calls, 0, map[string]any{"access_token": "T2", "token_type": "Bearer"})

	data := domain.DecryptedCredentialData{
		"clientId":     "id",
		"clientSecret": "secret",
		domain.FieldTokenData: map[string]any{
			"access_token":  "expired",
			"refresh_token": "R1",
		},
	}
	credentialID := seedCredential(t, manager, repo, "vendorOAuth2Api", data)

	tokens := NewOAuth2TokenManager(manager, server.Client())
	config := &domain.OAuth2Config{GrantType: domain.GrantAuthorizationCode, AccessTokenURL: server.URL}

	token, err := tokens.Refresh(context.Background(), credentialID, config, data)
	require.NoError(t, err)
	assert.Equal(t, "T2", token.AccessToken)
	assert.Equal(t, "R1", token.RefreshToken)

	// The persisted blob decrypts to the refreshed material.
	persisted, err := manager.GetDecryptedCredential(context.Background(), credentialID)
	require.NoError(t, err)
	persistedToken, ok := persisted.TokenData()
	require.True(t, ok)
	assert.Equal(t, "T2", persistedToken.AccessToken)
	assert.Equal(t, "R1", persistedToken.RefreshToken)
}

func TestRefresh_SingleFlightAcrossConcurrentCallers(t *testing.T) {
	manager, repo := newTestCredentialManager(t)

	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, 100*time.Millisecond, map[string]any{"access_token": "T2", "token_type": "Bearer"})

	data := domain.DecryptedCredentialData{
		"clientId":     "id",
		"clientSecret": "secret",
		domain.FieldTokenData: map[string]any{
			"access_token":  "expired",
			"refresh_token": "R1",
		},
	}
	credentialID := seedCredential(t, manager, repo, "vendorOAuth2Api", data)

	tokens := NewOAuth2TokenManager(manager, server.Client())
	config := &domain.OAuth2Config{GrantType: domain.GrantAuthorizationCode, AccessTokenURL: server.URL}

	const concurrency = 10

	var wg sync.WaitGroup
	results := make([]domain.OAuth2TokenData, concurrency)
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tokens.Refresh(context.Background(), credentialID, config, data)
		}(i)
	}
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "T2", results[i].AccessToken)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestRefresh_PersistFailureStillReturnsToken(t *testing.T) {
	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, 0, map[string]any{"access_token": "T2"})

	failing := &failingCredentialManager{}
	tokens := NewOAuth2TokenManager(failing, server.Client())
	config := &domain.OAuth2Config{GrantType: domain.GrantClientCredentials, AccessTokenURL: server.URL}

	token, err := tokens.Refresh(context.Background(), "cred-1",
		config, domain.DecryptedCredentialData{"clientId": "id", "clientSecret": "secret"})

	require.NoError(t, err)
	assert.Equal(t, "T2", token.AccessToken)
	assert.True(t, failing.updateCalled)
}

func TestRefresh_CallerCancellationDoesNotWedgeFlight(t *testing.T) {
	manager, repo := newTestCredentialManager(t)

	var calls atomic.Int64
	server := tokenEndpoint(t, &calls, 200*time.Millisecond, map[string]any{"access_token": "T2"})

	data := domain.DecryptedCredentialData{"clientId": "id", "clientSecret": "secret"}
	credentialID := seedCredential(t, manager, repo, "serviceOAuth2Api", data)

	tokens := NewOAuth2TokenManager(manager, server.Client())
	config := &domain.OAuth2Config{GrantType: domain.GrantClientCredentials, AccessTokenURL: server.URL}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := tokens.Refresh(ctx, credentialID, config, data)
	require.ErrorIs(t, err, context.Canceled)

	// A later caller acquires normally; no lock survives the cancellation.
	token, err := tokens.Refresh(context.Background(), credentialID, config, data)
	require.NoError(t, err)
	assert.Equal(t, "T2", token.AccessToken)
}

type failingCredentialManager struct {
	updateCalled bool
}

func (f *failingCredentialManager) GetCredential(ctx context.Context, id string) (domain.Credential, error) {
	return domain.Credential{}, domain.ErrCredentialNotFound
}

func (f *failingCredentialManager) GetDecryptedCredential(ctx context.Context, id string) (domain.DecryptedCredentialData, error) {
	return nil, domain.ErrCredentialNotFound
}

func (f *failingCredentialManager) UpdateCredentialData(ctx context.Context, id string, data domain.DecryptedCredentialData) error {
	f.updateCalled = true
	return errors.New("store unavailable")
}
