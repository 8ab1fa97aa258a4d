// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package authz

import (
	"sync"
	"time"
)

type decisionKey struct {
	role, path, action string
}

type decision struct {
	allowed   bool
	expiresAt time.Time
}

// decisionCache caches decisions per (role, path, action). Projection paths
// carry the subject id, so the janitor keeps the map from growing without
// bound.
type decisionCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[decisionKey]decision
	stopChan chan struct{}
	stopOnce sync.Once
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	c := &decisionCache{
		ttl:      ttl,
		items:    make(map[decisionKey]decision),
		stopChan: make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *decisionCache) get(role, path, action string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.items[decisionKey{role, path, action}]
	if !ok || time.Now().After(d.expiresAt) {
		return false, false
	}
	return d.allowed, true
}

func (c *decisionCache) set(role, path, action string, allowed bool) {
	c.mu.Lock()
	c.items[decisionKey{role, path, action}] = decision{allowed: allowed, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *decisionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *decisionCache) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, d := range c.items {
				if now.After(d.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// stop is idempotent.
func (c *decisionCache) stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}
