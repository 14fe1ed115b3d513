package token

import (
	"sync"
	"time"
)

// RevokedTokenCache interface for managing revoked access tokens
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	Cleanup() // Remove expired entries
}

// InMemoryRevokedTokenCache is a simple in-memory implementation. Entries
// are only kept until the token they revoke would have expired anyway.
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	nowFunc func() time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevokedTokenCache(now func() time.Time) RevokedTokenCache {
	if now == nil {
		now = time.Now
	}
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		nowFunc: now,
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exp, exists := c.revoked[jti]
	return exists && !c.nowFunc().After(exp)
}

func (c *InMemoryRevokedTokenCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}
