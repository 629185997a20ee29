package domain

import (
	"context"
	"time"
)

// Credential is a named, typed secret record. The data payload is always
// encrypted at rest; plaintext exists only in memory for the duration of a
// single authenticate-and-call cycle.
type Credential struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TypeName      string `json:"type_name"`
	EncryptedData []byte `json:"encrypted_data"`
}

// DecryptedCredentialData is the plaintext field map of a credential. It must
// never be logged or serialized except back through the encryption path.
type DecryptedCredentialData map[string]any

// FieldTokenData is the decrypted-data key under which OAuth2 token material
// is stored.
const FieldTokenData = "tokenData"

// Clone returns a shallow copy so callers can merge fields without mutating
// the source map.
func (d DecryptedCredentialData) Clone() DecryptedCredentialData {
	out := make(DecryptedCredentialData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// TokenData extracts cached OAuth2 token material, if any.
func (d DecryptedCredentialData) TokenData() (OAuth2TokenData, bool) {
	raw, ok := d[FieldTokenData]
	if !ok {
		return OAuth2TokenData{}, false
	}
	switch v := raw.(type) {
	case OAuth2TokenData:
		return v, v.AccessToken != ""
	case map[string]any:
		token := OAuth2TokenData{}
		if s, ok := v["access_token"].(string); ok {
			token.AccessToken = s
		}
		if s, ok := v["refresh_token"].(string); ok {
			token.RefreshToken = s
		}
		if s, ok := v["token_type"].(string); ok {
			token.TokenType = s
		}
		if s, ok := v["expires_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				token.ExpiresAt = &t
			}
		}
		return token, token.AccessToken != ""
	default:
		return OAuth2TokenData{}, false
	}
}

// OAuth2TokenData is the cached token material for an OAuth2 credential. It
// is replaced wholesale on every successful acquisition or refresh, except
// that a prior refresh token survives a refresh response that omits one.
type OAuth2TokenData struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// AsMap converts token data to the plain map form stored inside the
// encrypted credential payload.
func (t OAuth2TokenData) AsMap() map[string]any {
	m := map[string]any{
		"access_token": t.AccessToken,
	}
	if t.RefreshToken != "" {
		m["refresh_token"] = t.RefreshToken
	}
	if t.TokenType != "" {
		m["token_type"] = t.TokenType
	}
	if t.ExpiresAt != nil {
		m["expires_at"] = t.ExpiresAt.Format(time.RFC3339)
	}
	return m
}

// CredentialRepository persists encrypted credential records. Saves are
// atomic at the row level; concurrent saves to the same id are
// last-write-wins.
type CredentialRepository interface {
	Load(ctx context.Context, id string) (Credential, error)
	Save(ctx context.Context, credential Credential) error
}

// CredentialManager is the decrypt-on-read, re-encrypt-on-write surface over
// the repository.
type CredentialManager interface {
	GetCredential(ctx context.Context, id string) (Credential, error)
	GetDecryptedCredential(ctx context.Context, id string) (DecryptedCredentialData, error)
	UpdateCredentialData(ctx context.Context, id string, data DecryptedCredentialData) error
}
