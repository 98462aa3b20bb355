// Package cache holds the in-process admin-status cache.
//
// Entries expire after a fixed TTL and are never invalidated when the stored
// admin flag changes, so a promotion or demotion becomes visible only after
// the cached entry ages out.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// AdminStatus caches admin flags per identity key. It is safe for concurrent use.
type AdminStatus struct {
	lru *expirable.LRU[string, bool]
}

// NewAdminStatus returns a cache of at most size entries living ttl each.
func NewAdminStatus(size int, ttl time.Duration) *AdminStatus {
	return &AdminStatus{lru: expirable.NewLRU[string, bool](size, nil, ttl)}
}

// Get returns the cached flag for key.
func (c *AdminStatus) Get(key string) (isAdmin bool, ok bool) {
	if c == nil {
		return false, false
	}
	return c.lru.Get(key)
}

// Set stores the flag for key, restarting its TTL.
func (c *AdminStatus) Set(key string, isAdmin bool) {
	if c == nil {
		return
	}
	c.lru.Add(key, isAdmin)
}

// Len returns the number of live entries.
func (c *AdminStatus) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
