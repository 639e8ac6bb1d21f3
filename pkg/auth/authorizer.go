// Package auth implements the API's OAuth entry point: access token
// validation, extra claims resolution and the resulting claims principal.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth/claims"
	"github.com/gary-archer/oauth.websample.azure/pkg/auth/token"
	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
)

// Authorizer runs the authorization sequence for each API request: read the
// bearer token, validate it, then resolve extra claims through the cache.
// The first failure is terminal and nothing is retried.
type Authorizer struct {
	validator      *token.Validator
	claimsCache    *claims.Cache
	claimsProvider claims.Provider
}

// NewAuthorizer creates the authorizer with its collaborators. The cache is
// passed in explicitly so that tests and the composition root control its
// lifetime.
func NewAuthorizer(validator *token.Validator, claimsCache *claims.Cache, claimsProvider claims.Provider) *Authorizer {
	return &Authorizer{
		validator:      validator,
		claimsCache:    claimsCache,
		claimsProvider: claimsProvider,
	}
}

// AuthorizeRequest authenticates an API request and returns the claims
// principal for downstream business logic. Any returned error is already
// normalised to a client or server fault.
func (a *Authorizer) AuthorizeRequest(r *http.Request) (*claims.Principal, error) {
	accessToken, err := readAccessToken(r)
	if err != nil {
		return nil, err
	}

	tokenClaims, err := a.validator.ValidateAccessToken(r.Context(), accessToken)
	if err != nil {
		return nil, errors.FromError(err)
	}

	// The token hash keys the extra claims cache, so the provider runs at
	// most once per distinct token
	tokenHash := hashAccessToken(accessToken)
	if extraClaims, found := a.claimsCache.Get(tokenHash); found {
		return &claims.Principal{Token: tokenClaims, Extra: extraClaims}, nil
	}

	extraClaims, err := a.claimsProvider.LookupExtraClaims(r.Context(), tokenClaims)
	if err != nil {
		return nil, errors.FromError(err)
	}

	a.claimsCache.Put(tokenHash, extraClaims, tokenClaims.Expiry)
	return &claims.Principal{Token: tokenClaims, Extra: extraClaims}, nil
}

// readAccessToken extracts the bearer token from the Authorization header.
// Exactly one header value is accepted and the scheme match is case
// insensitive, per RFC 6750.
func readAccessToken(r *http.Request) (string, error) {
	headerValues := r.Header.Values("Authorization")
	if len(headerValues) == 0 {
		return "", errors.NewMissingTokenError("no access token was supplied in the bearer header")
	}
	if len(headerValues) > 1 {
		return "", errors.NewUnauthorizedError("multiple authorization headers were supplied", nil)
	}

	scheme, accessToken, found := strings.Cut(strings.TrimSpace(headerValues[0]), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.NewMissingTokenError("no access token was supplied in the bearer header")
	}

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", errors.NewMissingTokenError("no access token was supplied in the bearer header")
	}

	return accessToken, nil
}

// hashAccessToken derives the cache key, so that raw tokens are never kept
// in memory longer than the request
func hashAccessToken(accessToken string) string {
	digest := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(digest[:])
}
