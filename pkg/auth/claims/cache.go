package claims

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
)

// cacheEntry pairs the cached claims with the expiry of the token they were
// looked up for
type cacheEntry struct {
	claims ExtraClaims
	expiry int64
}

// Cache stores extra claims keyed by a hash of the access token, so that
// the claims lookup runs only once per token rather than on every request.
//
// An entry never outlives its token: the cache wide time to live bounds how
// long any entry may live, and the read path additionally rejects entries
// whose token has expired in the meantime.
type Cache struct {
	entries *expirable.LRU[string, cacheEntry]
}

// NewCache creates the claims cache with a maximum entry count and the
// maximum time any entry may live
func NewCache(maxEntries int, timeToLive time.Duration) *Cache {
	return &Cache{
		entries: expirable.NewLRU[string, cacheEntry](maxEntries, nil, timeToLive),
	}
}

// Get returns the cached claims for a token hash. Entries whose token has
// expired are removed and reported as a miss.
func (c *Cache) Get(tokenHash string) (ExtraClaims, bool) {
	entry, found := c.entries.Get(tokenHash)
	if !found {
		return ExtraClaims{}, false
	}

	if entry.expiry <= time.Now().Unix() {
		c.entries.Remove(tokenHash)
		return ExtraClaims{}, false
	}

	logger.Debugf("Found existing claims in cache for token hash %s", tokenHash)
	return entry.claims, true
}

// Put stores claims for a token hash. Tokens that have already expired are
// never cached, and storing the same hash twice is an overwrite, so
// concurrent lookups for one token converge on the same value.
func (c *Cache) Put(tokenHash string, extra ExtraClaims, tokenExpiry int64) {
	secondsToLive := tokenExpiry - time.Now().Unix()
	if secondsToLive <= 0 {
		return
	}

	logger.Debugf("Adding claims to cache for token hash %s, token expires in %d seconds", tokenHash, secondsToLive)
	c.entries.Add(tokenHash, cacheEntry{claims: extra, expiry: tokenExpiry})
}
