package claims

import (
	"context"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth/token"
)

// Provider looks up the extra claims for a verified token. Implementations
// must be safe for concurrent use, since the authorizer calls them from
// request goroutines on every cache miss.
type Provider interface {
	LookupExtraClaims(ctx context.Context, tokenClaims *token.Claims) (ExtraClaims, error)
}

// Azure AD object ids for the built in guest accounts
const (
	guestAdminObjectID = "a724f361-38df-47b6-aa99-13723f77c47a"
)

// SampleProvider returns fixed claims for the two guest user accounts. A
// real deployment would read its own user database instead.
type SampleProvider struct{}

// NewSampleProvider creates the demo claims provider
func NewSampleProvider() *SampleProvider {
	return &SampleProvider{}
}

// LookupExtraClaims maps the token subject to the demo user accounts
func (p *SampleProvider) LookupExtraClaims(_ context.Context, tokenClaims *token.Claims) (ExtraClaims, error) {
	if tokenClaims.Subject == guestAdminObjectID {
		return ExtraClaims{
			ManagerID: "20116",
			Role:      RoleAdmin,
			Title:     "Global Manager",
			Regions:   []string{"Europe", "USA", "Asia"},
		}, nil
	}

	return ExtraClaims{
		ManagerID: "10345",
		Role:      "user",
		Title:     "Regional Manager",
		Regions:   []string{"USA"},
	}, nil
}
