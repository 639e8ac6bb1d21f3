// Package oidc provides OpenID Connect metadata discovery.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gary-archer/oauth.websample.azure/pkg/networking"
)

// UserAgent is the user agent for requests to the identity provider
const UserAgent = "oauth-websample/1.0"

// discoveryTimeout bounds the metadata fetch at startup
const discoveryTimeout = 10 * time.Second

// DiscoveryDocument represents the OIDC discovery document structure
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// httpClient interface for dependency injection (private for testing)
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DiscoverEndpoints fetches the issuer's well known metadata and returns the
// endpoints the API needs, most importantly the JWKS URI.
func DiscoverEndpoints(ctx context.Context, issuer string, allowPrivate bool) (*DiscoveryDocument, error) {
	client, err := networking.NewHTTPClientBuilder().
		WithPrivateIPs(allowPrivate).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return discoverEndpointsWithClient(ctx, issuer, client)
}

func discoverEndpointsWithClient(ctx context.Context, issuer string, client httpClient) (*DiscoveryDocument, error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil || issuerURL.Host == "" {
		return nil, fmt.Errorf("invalid issuer URL %q", issuer)
	}

	wellKnownURL := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OIDC configuration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OIDC discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OIDC configuration: %w", err)
	}

	if doc.JWKSURI == "" {
		return nil, fmt.Errorf("OIDC configuration missing jwks_uri")
	}

	return &doc, nil
}
