package jwtauth

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"gopkg.in/square/go-jose.v2"
)

var (
	// DefaultKeySetExpiration is how long keys fetched from remote JWKS endpoint are reused.
	DefaultKeySetExpiration = 30 * time.Second
	// MinKeySetRefreshInterval limits how often lookups for unknown key IDs can force a refresh.
	MinKeySetRefreshInterval = 5 * time.Second
)

// KeySet returns verification keys for given key IDs. Empty keyIDs (or only empty IDs) means all keys.
type KeySet interface {
	KeysWithID(ctx context.Context, keyIDs []string) ([]jose.JSONWebKey, error)
}

func wantedIDs(keyIDs []string) map[string]struct{} {
	wanted := map[string]struct{}{}
	for _, id := range keyIDs {
		if id != "" {
			wanted[id] = struct{}{}
		}
	}
	return wanted
}

func filterKeys(keys []jose.JSONWebKey, keyIDs []string) []jose.JSONWebKey {
	wanted := wantedIDs(keyIDs)
	if len(wanted) == 0 {
		return keys
	}

	var out []jose.JSONWebKey
	for _, k := range keys {
		// Keys without ID are candidates for any token.
		if _, ok := wanted[k.KeyID]; ok || k.KeyID == "" {
			out = append(out, k)
		}
	}
	return out
}

type staticKeySet struct {
	keys []jose.JSONWebKey
}

// NewStaticKeySet returns KeySet holding public (or symmetric) parts of the given keys.
func NewStaticKeySet(keys ...jose.JSONWebKey) KeySet {
	s := &staticKeySet{}
	for _, k := range keys {
		s.keys = append(s.keys, verificationKey(k))
	}
	return s
}

func (s *staticKeySet) KeysWithID(_ context.Context, keyIDs []string) ([]jose.JSONWebKey, error) {
	return filterKeys(s.keys, keyIDs), nil
}

// verificationKey strips private part of asymmetric key.
func verificationKey(k jose.JSONWebKey) jose.JSONWebKey {
	if _, symmetric := k.Key.([]byte); symmetric || k.IsPublic() {
		return k
	}
	return k.Public()
}

type remoteKeySet struct {
	jwksURL string
	ctx     context.Context

	// group collapses concurrent refreshes into one request.
	group singleflight.Group
}

// NewRemoteKeySet returns KeySet that fetches keys from jwksURL on every call.
// Requests are made with ctx (and HTTP client from it, see HTTPClientCtxKey), not the per call context, so
// a canceled caller does not fail refresh for others waiting on it. Wrap it in NewCachedKeySet to avoid
// fetching on every verification.
func NewRemoteKeySet(ctx context.Context, jwksURL string) KeySet {
	return &remoteKeySet{jwksURL: jwksURL, ctx: ctx}
}

func (r *remoteKeySet) KeysWithID(ctx context.Context, keyIDs []string) ([]jose.JSONWebKey, error) {
	ch := r.group.DoChan(r.jwksURL, func() (interface{}, error) {
		return r.fetchKeys(r.ctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return filterKeys(res.Val.([]jose.JSONWebKey), keyIDs), nil
	}
}

func (r *remoteKeySet) fetchKeys(ctx context.Context) ([]jose.JSONWebKey, error) {
	var keySet jose.JSONWebKeySet
	if err := getJSON(ctx, r.jwksURL, &keySet); err != nil {
		return nil, errors.Wrap(err, "jwtauth: get keys failed")
	}
	return keySet.Keys, nil
}

const allKeysCacheKey = "keys"

type cachedKeySet struct {
	src   KeySet
	cache *cache.Cache
	clock clock.Clock

	mu        sync.Mutex
	lastFetch time.Time
}

// NewCachedKeySet caches all keys returned by src for expiration. Lookup for key ID that is not in cache
// forces refresh, so rotated keys are picked up quickly, but at most once per MinKeySetRefreshInterval.
// Expiration <= 0 disables caching.
func NewCachedKeySet(src KeySet, expiration time.Duration) KeySet {
	if expiration <= 0 {
		return src
	}
	return &cachedKeySet{src: src, cache: cache.New(expiration, 2*expiration), clock: clock.WallClock}
}

// startFetch records fetch start. Forced refreshes are refused within MinKeySetRefreshInterval of the last one.
func (c *cachedKeySet) startFetch(forced bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if forced && now.Before(c.lastFetch.Add(MinKeySetRefreshInterval)) {
		return false
	}
	c.lastFetch = now
	return true
}

func (c *cachedKeySet) KeysWithID(ctx context.Context, keyIDs []string) ([]jose.JSONWebKey, error) {
	v, cached := c.cache.Get(allKeysCacheKey)
	if cached {
		if keys := filterKeys(v.([]jose.JSONWebKey), keyIDs); len(keys) > 0 {
			return keys, nil
		}
	}
	if !c.startFetch(cached) {
		return nil, nil
	}

	keys, err := c.src.KeysWithID(ctx, nil)
	if err != nil {
		return nil, err
	}
	c.cache.Set(allKeysCacheKey, keys, cache.DefaultExpiration)
	return filterKeys(keys, keyIDs), nil
}

type multiKeySet []KeySet

// NewMultiKeySet asks given key sets in order and returns keys from all of them, the first key with given ID wins.
// Sets after the one that returned keys for every requested ID are not asked. Keys without ID match any token,
// so they never stop the lookup.
func NewMultiKeySet(sets ...KeySet) KeySet {
	return multiKeySet(sets)
}

func (m multiKeySet) KeysWithID(ctx context.Context, keyIDs []string) ([]jose.JSONWebKey, error) {
	wanted := wantedIDs(keyIDs)
	found := map[string]struct{}{}

	var (
		out     []jose.JSONWebKey
		lastErr error
	)
	for _, s := range m {
		keys, err := s.KeysWithID(ctx, keyIDs)
		if err != nil {
			lastErr = err
			continue
		}
		for _, k := range keys {
			if k.KeyID != "" {
				if _, ok := found[k.KeyID]; ok {
					continue
				}
				found[k.KeyID] = struct{}{}
			}
			out = append(out, k)
		}
		if len(wanted) > 0 && containsAll(found, wanted) {
			return out, nil
		}
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

func containsAll(found, wanted map[string]struct{}) bool {
	for id := range wanted {
		if _, ok := found[id]; !ok {
			return false
		}
	}
	return true
}
