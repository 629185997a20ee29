package auth

import (
	"github.com/yksirotta/credflow/pkg/domain"
)

// AuthenticateOAuth2 injects the cached access token into the request. Token
// acquisition and refresh are the token lifecycle manager's job; by the time
// a request is signed the token data must exist.
func AuthenticateOAuth2(config *domain.OAuth2Config, token domain.OAuth2TokenData, req *domain.RequestDescriptor) error {
	if token.AccessToken == "" {
		return &domain.AuthSigningError{Scheme: domain.AuthSchemeOAuth2, Message: "no access token available"}
	}

	if !config.SendsBearerPrefix() {
		req.SetHeader("Authorization", token.AccessToken)
		return nil
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.SetHeader("Authorization", tokenType+" "+token.AccessToken)

	return nil
}
