package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth/claims"
	"github.com/gary-archer/oauth.websample.azure/pkg/auth/token"
	"github.com/gary-archer/oauth.websample.azure/pkg/config"
	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
	"github.com/gary-archer/oauth.websample.azure/pkg/networking"
)

const (
	testKeyID    = "authorizer-test-key"
	testIssuer   = "https://issuer.example.com/v2.0"
	testAudience = "api://sampleapi"
)

// countingProvider wraps the sample provider and records lookup calls
type countingProvider struct {
	lookups atomic.Int64
	inner   claims.Provider
	fail    bool
}

func (p *countingProvider) LookupExtraClaims(ctx context.Context, tokenClaims *token.Claims) (claims.ExtraClaims, error) {
	p.lookups.Add(1)
	if p.fail {
		return claims.ExtraClaims{}, errors.NewUserInfoError("problem calling the user info endpoint", nil)
	}
	return p.inner.LookupExtraClaims(ctx, tokenClaims)
}

// authFixture wires a full authorizer against a local JWKS server
type authFixture struct {
	privateKey *rsa.PrivateKey
	provider   *countingProvider
	authorizer *Authorizer
}

func newAuthFixture(t *testing.T, jwksStatus int) *authFixture {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.Import(&privateKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, testKeyID))
	require.NoError(t, key.Set(jwk.AlgorithmKey, "RS256"))
	keySet := jwk.NewSet()
	require.NoError(t, keySet.AddKey(key))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if jwksStatus != http.StatusOK {
			w.WriteHeader(jwksStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keySet)
	}))
	t.Cleanup(server.Close)

	httpClient, err := networking.NewHTTPClientBuilder().WithPrivateIPs(true).Build()
	require.NoError(t, err)

	retriever, err := token.NewJWKSRetriever(context.Background(), server.URL, httpClient)
	require.NoError(t, err)

	validator := token.NewValidator(&config.OAuthConfig{
		Issuer:        testIssuer,
		Audience:      testAudience,
		Algorithms:    []string{"RS256"},
		RequiredScope: "read",
	}, retriever)

	provider := &countingProvider{inner: claims.NewSampleProvider()}
	authorizer := NewAuthorizer(validator, claims.NewCache(100, 15*time.Minute), provider)

	return &authFixture{
		privateKey: privateKey,
		provider:   provider,
		authorizer: authorizer,
	}
}

func (f *authFixture) signToken(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()

	tokenClaims := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "test-user",
		"scp": "read",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(tokenClaims)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, tokenClaims)
	tok.Header["kid"] = testKeyID
	signed, err := tok.SignedString(f.privateKey)
	require.NoError(t, err)
	return signed
}

func requestWithToken(accessToken string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/companies", nil)
	if accessToken != "" {
		r.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return r
}

func TestAuthorizeRequestCachesExtraClaims(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)
	accessToken := fixture.signToken(t, nil)

	first, err := fixture.authorizer.AuthorizeRequest(requestWithToken(accessToken))
	require.NoError(t, err)

	second, err := fixture.authorizer.AuthorizeRequest(requestWithToken(accessToken))
	require.NoError(t, err)

	assert.Equal(t, int64(1), fixture.provider.lookups.Load(), "the provider must run once per distinct token")
	assert.Equal(t, first.Extra, second.Extra)
	assert.Equal(t, "test-user", second.Token.Subject)
}

func TestAuthorizeRequestDistinctTokensLookupSeparately(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)

	_, err := fixture.authorizer.AuthorizeRequest(requestWithToken(fixture.signToken(t, func(c jwt.MapClaims) {
		c["sub"] = "first-user"
	})))
	require.NoError(t, err)

	_, err = fixture.authorizer.AuthorizeRequest(requestWithToken(fixture.signToken(t, func(c jwt.MapClaims) {
		c["sub"] = "second-user"
	})))
	require.NoError(t, err)

	assert.Equal(t, int64(2), fixture.provider.lookups.Load())
}

func TestAuthorizeRequestMissingToken(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)

	testCases := []struct {
		name    string
		headers []string
	}{
		{name: "no header"},
		{name: "empty bearer", headers: []string{"Bearer "}},
		{name: "wrong scheme", headers: []string{"Basic dXNlcjpwYXNz"}},
		{name: "no scheme", headers: []string{"some-token"}},
		{name: "multiple headers", headers: []string{"Bearer one", "Bearer two"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/api/companies", nil)
			for _, h := range tc.headers {
				r.Header.Add("Authorization", h)
			}

			_, err := fixture.authorizer.AuthorizeRequest(r)
			require.Error(t, err)
			assert.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
			assert.Equal(t, int64(0), fixture.provider.lookups.Load(), "the provider must not run without a valid token")
		})
	}
}

func TestAuthorizeRequestBearerSchemeIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)
	r := httptest.NewRequest(http.MethodGet, "/api/companies", nil)
	r.Header.Set("Authorization", "bearer "+fixture.signToken(t, nil))

	_, err := fixture.authorizer.AuthorizeRequest(r)
	require.NoError(t, err)
}

func TestAuthorizeRequestExpiredToken(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)
	accessToken := fixture.signToken(t, func(c jwt.MapClaims) {
		c["exp"] = time.Now().Add(-time.Hour).Unix()
	})

	_, err := fixture.authorizer.AuthorizeRequest(requestWithToken(accessToken))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
	assert.Equal(t, int64(0), fixture.provider.lookups.Load())
}

func TestAuthorizeRequestInsufficientScope(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)
	accessToken := fixture.signToken(t, func(c jwt.MapClaims) {
		c["scp"] = "other_scope"
	})

	_, err := fixture.authorizer.AuthorizeRequest(requestWithToken(accessToken))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, errors.StatusCode(err))

	var clientError *errors.ClientError
	require.ErrorAs(t, err, &clientError)
	assert.Equal(t, errors.CodeInsufficientScope, clientError.Code)
}

func TestAuthorizeRequestKeyDownloadFailure(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusInternalServerError)
	accessToken := fixture.signToken(t, nil)

	_, err := fixture.authorizer.AuthorizeRequest(requestWithToken(accessToken))
	require.Error(t, err)
	assert.True(t, errors.IsServer(err), "a JWKS outage must be a server fault, got %v", err)
	assert.Equal(t, http.StatusInternalServerError, errors.StatusCode(err))
}

func TestAuthorizeRequestProviderFailureNotCached(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)
	fixture.provider.fail = true
	accessToken := fixture.signToken(t, nil)

	_, err := fixture.authorizer.AuthorizeRequest(requestWithToken(accessToken))
	require.Error(t, err)
	assert.True(t, errors.IsServer(err))

	// The failure is not cached, so a retry runs the provider again
	fixture.provider.fail = false
	principal, err := fixture.authorizer.AuthorizeRequest(requestWithToken(accessToken))
	require.NoError(t, err)
	assert.Equal(t, int64(2), fixture.provider.lookups.Load())
	assert.NotEmpty(t, principal.Extra.ManagerID)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	fixture := newAuthFixture(t, http.StatusOK)

	var seenPrincipal *claims.Principal
	handler := Middleware(fixture.authorizer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPrincipal, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("authorized request reaches the handler", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestWithToken(fixture.signToken(t, nil)))

		assert.Equal(t, http.StatusOK, recorder.Code)
		require.NotNil(t, seenPrincipal)
		assert.Equal(t, "test-user", seenPrincipal.Token.Subject)
	})

	t.Run("unauthorized request gets the fault response", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestWithToken(""))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Equal(t, "Bearer", recorder.Header().Get("WWW-Authenticate"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, errors.CodeUnauthorized, body["code"])
	})

	t.Run("rejected token names the error in the challenge", func(t *testing.T) {
		expired := fixture.signToken(t, func(c jwt.MapClaims) {
			c["exp"] = time.Now().Add(-time.Hour).Unix()
		})

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestWithToken(expired))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Equal(t, `Bearer error="invalid_token"`, recorder.Header().Get("WWW-Authenticate"))
	})

	t.Run("server fault hides details but returns a correlation id", func(t *testing.T) {
		failing := newAuthFixture(t, http.StatusBadGateway)
		failingHandler := Middleware(failing.authorizer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		recorder := httptest.NewRecorder()
		failingHandler.ServeHTTP(recorder, requestWithToken(failing.signToken(t, nil)))

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, errors.CodeSigningKeyDownload, body["code"])
		assert.NotEmpty(t, body["instanceId"])
		assert.NotContains(t, body["message"], "status", "diagnostic details must stay out of the response")
	})
}
