package token

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
	"github.com/gary-archer/oauth.websample.azure/pkg/networking"
)

func newTestRetriever(t *testing.T, jwksURL string) *JWKSRetriever {
	t.Helper()

	httpClient, err := networking.NewHTTPClientBuilder().WithPrivateIPs(true).Build()
	require.NoError(t, err)

	retriever, err := NewJWKSRetriever(context.Background(), jwksURL, httpClient)
	require.NoError(t, err)
	return retriever
}

func TestJWKSRetrieverGetKey(t *testing.T) {
	t.Parallel()

	keys := newTestKeySet(t, testKeyID)
	server := newJWKSServer(t, keys.keySet)
	retriever := newTestRetriever(t, server.URL)

	publicKey, err := retriever.GetKey(context.Background(), testKeyID)
	require.NoError(t, err)
	assert.NotNil(t, publicKey)

	// A second lookup for the same kid is served from the cached key set
	fetchesBefore := server.fetches.Load()
	_, err = retriever.GetKey(context.Background(), testKeyID)
	require.NoError(t, err)
	assert.Equal(t, fetchesBefore, server.fetches.Load())
}

func TestJWKSRetrieverRefreshOnRotation(t *testing.T) {
	t.Parallel()

	keys := newTestKeySet(t, testKeyID)
	server := newJWKSServer(t, keys.keySet)
	retriever := newTestRetriever(t, server.URL)

	// Warm the cache with the original key set
	_, err := retriever.GetKey(context.Background(), testKeyID)
	require.NoError(t, err)

	// Rotate the signing key at the authorization server
	rotated := newTestKeySet(t, "rotated-key")
	server.rotate(rotated.keySet)

	// A lookup for the new kid misses, forces a refresh and then succeeds
	publicKey, err := retriever.GetKey(context.Background(), "rotated-key")
	require.NoError(t, err)
	assert.NotNil(t, publicKey)
}

func TestJWKSRetrieverUnknownKeyID(t *testing.T) {
	t.Parallel()

	keys := newTestKeySet(t, testKeyID)
	server := newJWKSServer(t, keys.keySet)
	retriever := newTestRetriever(t, server.URL)

	_, err := retriever.GetKey(context.Background(), "no-such-key")
	require.Error(t, err)
	assert.True(t, errors.IsClient(err), "a kid absent after refresh must be a client fault, got %v", err)
}

func TestJWKSRetrieverConcurrentLookups(t *testing.T) {
	t.Parallel()

	keys := newTestKeySet(t, testKeyID)
	server := newJWKSServer(t, keys.keySet)
	retriever := newTestRetriever(t, server.URL)

	var wg sync.WaitGroup
	failures := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := retriever.GetKey(context.Background(), testKeyID); err != nil {
				failures <- err
			}
		}()
	}
	wg.Wait()
	close(failures)

	for err := range failures {
		t.Errorf("concurrent lookup failed: %v", err)
	}
}
