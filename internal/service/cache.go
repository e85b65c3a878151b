package service

import (
	"crypto/sha256"
	"encoding/hex"
)

// responseCache holds decoded upstream payloads for the lifetime of one
// fetch cycle. It is never shared between cycles.
type responseCache struct {
	entries map[string]any
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]any)}
}

func (c *responseCache) get(key string) (any, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *responseCache) set(key string, payload any) {
	c.entries[key] = payload
}

// cacheKey separates identical URLs requested with different API keys
// without keeping the key itself in memory.
func cacheKey(url, apiKey string) string {
	if apiKey == "" {
		return url
	}
	sum := sha256.Sum256([]byte(apiKey))
	return url + ":" + hex.EncodeToString(sum[:])
}
