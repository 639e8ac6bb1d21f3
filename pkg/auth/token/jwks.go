package token

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
)

// registrationTimeout bounds the first JWKS registration so that a slow
// identity provider cannot block the first request indefinitely.
const registrationTimeout = 5 * time.Second

// JWKSRetriever downloads and caches the identity provider's token signing
// keys, and resolves individual keys by their key identifier.
//
// The whole key set is cached across calls. A request for an unknown key
// identifier triggers exactly one refresh of the whole set before the key
// is reported as unknown, so network cost per request stays bounded.
type JWKSRetriever struct {
	jwksURL    string
	jwksClient *jwk.Cache

	// refreshGroup collapses concurrent miss driven refreshes into one
	// in flight fetch
	refreshGroup singleflight.Group

	// Lazy JWKS registration
	jwksRegistered     bool
	jwksRegistrationMu sync.Mutex
}

// NewJWKSRetriever creates a retriever for the given JWKS endpoint. The
// supplied HTTP client carries the bounded timeouts for remote fetches.
func NewJWKSRetriever(ctx context.Context, jwksURL string, httpClient *http.Client) (*JWKSRetriever, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("missing JWKS URL")
	}

	httprcClient := httprc.NewClient(httprc.WithHTTPClient(httpClient))
	cache, err := jwk.NewCache(ctx, httprcClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}

	return &JWKSRetriever{
		jwksURL:    jwksURL,
		jwksClient: cache,
	}, nil
}

// JWKSURL returns the JWKS endpoint used by the retriever
func (r *JWKSRetriever) JWKSURL() string {
	return r.jwksURL
}

// ensureRegistered registers the JWKS URL with the cache on first use, so
// that startup does not block on the identity provider.
func (r *JWKSRetriever) ensureRegistered(ctx context.Context) error {
	r.jwksRegistrationMu.Lock()
	defer r.jwksRegistrationMu.Unlock()

	if r.jwksRegistered {
		return nil
	}

	registrationCtx, cancel := context.WithTimeout(ctx, registrationTimeout)
	defer cancel()

	// A failed registration is not cached, so a temporarily unreachable
	// identity provider is retried on the next request
	if err := r.jwksClient.Register(registrationCtx, r.jwksURL); err != nil {
		return fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	r.jwksRegistered = true
	return nil
}

// GetKey returns the raw public key for a key identifier. The identifier
// comes from an unverified token header and is only ever used to look keys
// up in the downloaded set.
//
// Failures are classified: a failed download is a server fault, while an
// identifier that stays unknown after a refresh is a client fault, since it
// most likely indicates an invalid or forged token.
func (r *JWKSRetriever) GetKey(ctx context.Context, kid string) (any, error) {
	if err := r.ensureRegistered(ctx); err != nil {
		return nil, errors.NewSigningKeyDownloadError(r.jwksURL, err)
	}

	keySet, err := r.jwksClient.Lookup(ctx, r.jwksURL)
	if err != nil {
		return nil, errors.NewSigningKeyDownloadError(r.jwksURL, err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		// The token may be signed with a key issued after our last
		// download, so refresh the whole set once before giving up.
		// Concurrent misses share one in flight refresh.
		logger.Debugf("key %q not in cached JWKS, refreshing key set", kid)
		refreshed, err, _ := r.refreshGroup.Do(r.jwksURL, func() (any, error) {
			return r.jwksClient.Refresh(ctx, r.jwksURL)
		})
		if err != nil {
			return nil, errors.NewSigningKeyDownloadError(r.jwksURL, err)
		}

		keySet = refreshed.(jwk.Set)
		key, found = keySet.LookupKeyID(kid)
		if !found {
			return nil, errors.NewUnauthorizedError(
				fmt.Sprintf("token signing key %q was not found in the JWKS", kid), nil)
		}
	}

	var rawKey any
	if err := jwk.Export(key, &rawKey); err != nil {
		return nil, errors.NewSigningKeyDownloadError(r.jwksURL, fmt.Errorf("failed to export raw key: %w", err))
	}

	return rawKey, nil
}
