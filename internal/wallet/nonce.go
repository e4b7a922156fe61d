package wallet

import (
	"sync"
	"time"
)

// NonceCache remembers consumed challenge nonces until their challenge would
// have expired anyway, which makes every signed challenge single-use. Nonces
// are scoped to the wallet the challenge was issued for.
type NonceCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time // address\x00nonce -> expiry
	now  func() time.Time
}

// NewNonceCache creates a cache that keeps nonces for ttl after issuance.
func NewNonceCache(ttl time.Duration) *NonceCache {
	return &NonceCache{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func nonceKey(address, nonce string) string {
	return address + "\x00" + nonce
}

// Consume marks address's nonce as used. It returns false if the nonce was
// already used for that address. Checking and marking happen under one lock,
// so of two concurrent calls exactly one succeeds.
func (c *NonceCache) Consume(address, nonce string, issuedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, k)
		}
	}

	key := nonceKey(address, nonce)
	if _, used := c.seen[key]; used {
		return false
	}
	c.seen[key] = issuedAt.Add(c.ttl)
	return true
}

// Release forgets a consumed nonce so its challenge can be submitted again.
// It is meant for attempts that failed after Consume for reasons unrelated to
// the signature.
func (c *NonceCache) Release(address, nonce string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, nonceKey(address, nonce))
}

// Len returns the number of nonces currently remembered.
func (c *NonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
