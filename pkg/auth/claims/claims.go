// Package claims provides the API's extra authorization values, looked up
// outside the access token, and caches them keyed by token hash.
package claims

import (
	"github.com/gary-archer/oauth.websample.azure/pkg/auth/token"
)

// RoleAdmin grants visibility of data for all regions
const RoleAdmin = "admin"

// ExtraClaims holds authorization values that the API manages itself rather
// than in the authorization server.
type ExtraClaims struct {
	// ManagerID is the user's identity in the API's own data
	ManagerID string `json:"managerId"`

	// Role determines high level permissions
	Role string `json:"role"`

	// Title is a display field returned to frontends
	Title string `json:"title"`

	// Regions restricts which companies a non admin user can see
	Regions []string `json:"regions"`
}

// IsAdmin reports whether the user has unrestricted data access
func (c ExtraClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// HasRegion reports whether the user is assigned to a region
func (c ExtraClaims) HasRegion(region string) bool {
	for _, r := range c.Regions {
		if r == region {
			return true
		}
	}
	return false
}

// Principal combines the verified token claims with the extra claims, and
// is the identity the API's business logic works with.
type Principal struct {
	Token *token.Claims
	Extra ExtraClaims
}

// CanAccessRegion applies the region rule for business data
func (p *Principal) CanAccessRegion(region string) bool {
	return p.Extra.IsAdmin() || p.Extra.HasRegion(region)
}
