package session

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/imr/Electric8/internal/tech"
)

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// DecodedCache keeps recently decoded technologies keyed by the content
// digest of their document. Cached technologies are shared and must not be
// modified.
type DecodedCache struct {
	lru *lru.Cache[string, *tech.Technology]
}

// NewDecodedCache creates a cache holding at most capacity technologies.
func NewDecodedCache(capacity int) *DecodedCache {
	if capacity < 1 {
		capacity = 1
	}
	c, err := lru.New[string, *tech.Technology](capacity)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic("session: " + err.Error())
	}
	return &DecodedCache{lru: c}
}

// Get returns the technology decoded from content with the given digest.
func (c *DecodedCache) Get(digest string) (*tech.Technology, bool) {
	return c.lru.Get(digest)
}

// Put records t for digest, evicting the least recently used entry when
// the cache is full.
func (c *DecodedCache) Put(digest string, t *tech.Technology) {
	c.lru.Add(digest, t)
}

// Forget drops the entry for digest.
func (c *DecodedCache) Forget(digest string) {
	c.lru.Remove(digest)
}

// Len returns the number of cached technologies.
func (c *DecodedCache) Len() int {
	return c.lru.Len()
}
