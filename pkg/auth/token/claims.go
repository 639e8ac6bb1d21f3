// Package token provides JWT access token validation against the identity
// provider's signing keys.
package token

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
)

// Claims holds the verified token claims the API uses for authorization.
// Instances are request scoped and read only after validation.
type Claims struct {
	// Subject is the user identifier from the access token. Azure AD
	// issues a stable object id that is preferred over the per app sub.
	Subject string

	// Scopes are the granted scopes in the order they appear in the token
	Scopes []string

	// Expiry is the token expiry time in epoch seconds
	Expiry int64
}

// HasScope reports whether the required scope was granted
func (c *Claims) HasScope(required string) bool {
	for _, scope := range c.Scopes {
		if scope == required {
			return true
		}
	}
	return false
}

// claimsFromPayload maps the verified JWT payload into the API's claims
func claimsFromPayload(payload jwt.MapClaims) (*Claims, error) {
	subject := stringClaim(payload, "oid")
	if subject == "" {
		subject = stringClaim(payload, "sub")
	}
	if subject == "" {
		return nil, errors.NewMissingClaimError("sub")
	}

	expiry, err := payload.GetExpirationTime()
	if err != nil || expiry == nil {
		return nil, errors.NewMissingClaimError("exp")
	}

	return &Claims{
		Subject: subject,
		Scopes:  scopesFromPayload(payload),
		Expiry:  expiry.Unix(),
	}, nil
}

// scopesFromPayload reads the scope claim, whose name and shape vary by
// identity provider: Azure AD uses scp, others use scope, and the value may
// be a space separated string or an array. Order is preserved as received.
func scopesFromPayload(payload jwt.MapClaims) []string {
	for _, name := range []string{"scp", "scope"} {
		switch value := payload[name].(type) {
		case string:
			if value != "" {
				return strings.Fields(value)
			}
		case []any:
			scopes := make([]string, 0, len(value))
			for _, entry := range value {
				if s, ok := entry.(string); ok {
					scopes = append(scopes, s)
				}
			}
			if len(scopes) > 0 {
				return scopes
			}
		}
	}
	return nil
}

func stringClaim(payload jwt.MapClaims, name string) string {
	value, _ := payload[name].(string)
	return value
}
