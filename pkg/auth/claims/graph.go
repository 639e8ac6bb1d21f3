package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth/token"
	"github.com/gary-archer/oauth.websample.azure/pkg/config"
	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
)

// graphTokenExpiryLeeway renews the service token a little before it
// actually expires, to avoid using a token that dies mid request
const graphTokenExpiryLeeway = 30 * time.Second

// GraphProvider looks up extra claims from a directory endpoint, using a
// client credentials grant for its own service identity. The user endpoint
// is queried by the token's subject and must return the claims as JSON.
type GraphProvider struct {
	configuration *config.GraphConfig
	httpClient    *http.Client

	// Cached service access token
	tokenMu         sync.Mutex
	serviceToken    string
	serviceTokenExp time.Time
}

// NewGraphProvider creates the directory backed claims provider
func NewGraphProvider(configuration *config.GraphConfig, httpClient *http.Client) *GraphProvider {
	return &GraphProvider{
		configuration: configuration,
		httpClient:    httpClient,
	}
}

// LookupExtraClaims queries the directory for the user behind the token
// subject. All failures are server faults, since the user's own token has
// already been verified by this point.
func (p *GraphProvider) LookupExtraClaims(ctx context.Context, tokenClaims *token.Claims) (ExtraClaims, error) {
	serviceToken, err := p.getServiceToken(ctx)
	if err != nil {
		return ExtraClaims{}, err
	}

	requestURL := fmt.Sprintf("%s/%s",
		strings.TrimSuffix(p.configuration.UserEndpoint, "/"),
		url.PathEscape(tokenClaims.Subject))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return ExtraClaims{}, errors.NewUserInfoError("problem creating user info request", err)
	}
	request.Header.Set("Authorization", "Bearer "+serviceToken)
	request.Header.Set("Accept", "application/json")

	response, err := p.httpClient.Do(request)
	if err != nil {
		return ExtraClaims{}, errors.NewUserInfoError("problem calling the user info endpoint", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return ExtraClaims{}, errors.NewUserInfoError(
			"problem calling the user info endpoint",
			fmt.Errorf("user lookup for subject %s returned status %d", tokenClaims.Subject, response.StatusCode))
	}

	var extraClaims ExtraClaims
	if err := json.NewDecoder(response.Body).Decode(&extraClaims); err != nil {
		return ExtraClaims{}, errors.NewUserInfoError("problem reading the user info response", err)
	}

	return extraClaims, nil
}

// getServiceToken returns a cached service access token, renewing it via a
// client credentials grant when missing or close to expiry
func (p *GraphProvider) getServiceToken(ctx context.Context) (string, error) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()

	if p.serviceToken != "" && time.Now().Before(p.serviceTokenExp.Add(-graphTokenExpiryLeeway)) {
		return p.serviceToken, nil
	}

	logger.Debug("Requesting a new service access token for directory lookups")

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.configuration.ClientID)
	form.Set("client_secret", p.configuration.ClientSecret)
	form.Set("scope", p.configuration.Scope)

	request, err := http.NewRequestWithContext(
		ctx, http.MethodPost, p.configuration.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.NewUserInfoError("problem creating token request", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := p.httpClient.Do(request)
	if err != nil {
		return "", errors.NewUserInfoError("problem requesting a service access token", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return "", errors.NewUserInfoError(
			"problem requesting a service access token",
			fmt.Errorf("token endpoint returned status %d: %s", response.StatusCode, strings.TrimSpace(string(body))))
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(response.Body).Decode(&grant); err != nil {
		return "", errors.NewUserInfoError("problem reading the token response", err)
	}
	if grant.AccessToken == "" {
		return "", errors.NewUserInfoError(
			"problem requesting a service access token",
			fmt.Errorf("token endpoint response contained no access token"))
	}

	p.serviceToken = grant.AccessToken
	p.serviceTokenExp = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	return p.serviceToken, nil
}
