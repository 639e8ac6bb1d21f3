package token

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gary-archer/oauth.websample.azure/pkg/config"
	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
)

// Validator performs standard JWT access token validation using keys from
// the JWKS retriever, then enforces the API's required scope.
type Validator struct {
	configuration *config.OAuthConfig
	jwksRetriever *JWKSRetriever
}

// NewValidator creates the access token validator
func NewValidator(configuration *config.OAuthConfig, jwksRetriever *JWKSRetriever) *Validator {
	return &Validator{
		configuration: configuration,
		jwksRetriever: jwksRetriever,
	}
}

// ValidateAccessToken verifies the token's signature, issuer, audience,
// expiry and required scope, and returns the decoded claims on success.
func (v *Validator) ValidateAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	keyfunc := func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		return v.jwksRetriever.GetKey(ctx, kid)
	}

	parsed, err := jwt.Parse(
		accessToken,
		keyfunc,
		jwt.WithValidMethods(v.configuration.Algorithms),
		jwt.WithLeeway(v.configuration.ClockSkew()),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// JWKS download problems surface as server faults; everything
		// else is a 401 with the library's reason for diagnosability
		var serverError *errors.ServerError
		if stderrors.As(err, &serverError) {
			return nil, serverError
		}
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("JWT verification failed: %v", err), err)
	}

	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.NewUnauthorizedError("JWT verification failed: unreadable claims", nil)
	}

	if err := v.validateProtocolClaims(payload); err != nil {
		return nil, err
	}

	claims, err := claimsFromPayload(payload)
	if err != nil {
		return nil, err
	}

	// The sample API requires the same scope for all endpoints, and it is
	// enforced here
	if !claims.HasScope(v.configuration.RequiredScope) {
		return nil, errors.NewInsufficientScopeError(
			"the token does not contain sufficient scope for this API")
	}

	return claims, nil
}

// validateProtocolClaims checks issuer and audience against configuration
func (v *Validator) validateProtocolClaims(payload jwt.MapClaims) error {
	issuer, err := payload.GetIssuer()
	if err != nil || strings.TrimSpace(issuer) != strings.TrimSpace(v.configuration.Issuer) {
		return errors.NewUnauthorizedError("JWT verification failed: invalid issuer", err)
	}

	audiences, err := payload.GetAudience()
	if err != nil {
		return errors.NewUnauthorizedError("JWT verification failed: invalid audience", err)
	}

	for _, audience := range audiences {
		if audience == v.configuration.Audience {
			return nil
		}
	}

	return errors.NewUnauthorizedError("JWT verification failed: invalid audience", nil)
}
