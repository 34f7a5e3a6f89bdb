// Package cache stores JSON-encoded query results under keys that belong to
// invalidation groups. A write anywhere in an organization drops every key in
// that organization's group.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration, groups ...string) error
	Delete(ctx context.Context, key string) error
	InvalidateGroup(ctx context.Context, group string) error
	// Generation counts the invalidations of group.
	Generation(ctx context.Context, group string) (int64, error)
	// SetIfGeneration stores value in group only while group is still at
	// generation gen, and reports whether it did.
	SetIfGeneration(ctx context.Context, key string, value interface{}, ttl time.Duration, group string, gen int64) (bool, error)
}

// DashboardGroup is the invalidation group of an organization's dashboard queries.
func DashboardGroup(orgID string) string {
	return "dashboard:" + orgID
}

type entry struct {
	data    []byte
	expires time.Time
}

// pruneEvery bounds how often Set sweeps expired entries.
const pruneEvery = time.Minute

// Memory is a process-local Cache. Expired entries are swept at most once per
// pruneEvery on Set, and by StartJanitor when the cache sits idle.
type Memory struct {
	mu        sync.Mutex
	items     map[string]entry
	groups    map[string]map[string]struct{}
	gens      map[string]int64
	now       func() time.Time
	lastPrune time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items:  make(map[string]entry),
		groups: make(map[string]map[string]struct{}),
		gens:   make(map[string]int64),
		now:    time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	m.mu.Lock()
	e, ok := m.items[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, groups ...string) error {
	e, err := m.encode(key, value, ttl)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, e, groups)
	return nil
}

func (m *Memory) SetIfGeneration(ctx context.Context, key string, value interface{}, ttl time.Duration, group string, gen int64) (bool, error) {
	e, err := m.encode(key, value, ttl)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[group] != gen {
		return false, nil
	}
	m.store(key, e, []string{group})
	return true, nil
}

func (m *Memory) Generation(ctx context.Context, group string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[group], nil
}

func (m *Memory) encode(key string, value interface{}, ttl time.Duration) (entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return entry{}, fmt.Errorf("encode %s: %w", key, err)
	}
	e := entry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return e, nil
}

// store requires m.mu.
func (m *Memory) store(key string, e entry, groups []string) {
	if now := m.now(); now.Sub(m.lastPrune) >= pruneEvery {
		m.prune(now)
	}
	m.items[key] = e
	for _, g := range groups {
		members, ok := m.groups[g]
		if !ok {
			members = make(map[string]struct{})
			m.groups[g] = members
		}
		members[key] = struct{}{}
	}
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) InvalidateGroup(ctx context.Context, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.groups[group] {
		delete(m.items, key)
	}
	delete(m.groups, group)
	m.gens[group]++
	return nil
}

// Prune drops every expired entry.
func (m *Memory) Prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.now())
}

func (m *Memory) prune(now time.Time) {
	m.lastPrune = now
	for key, e := range m.items {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.items, key)
		}
	}
	for g, members := range m.groups {
		for key := range members {
			if _, ok := m.items[key]; !ok {
				delete(members, key)
			}
		}
		if len(members) == 0 {
			delete(m.groups, g)
		}
	}
}

// StartJanitor runs Prune every interval until stop is closed.
func (m *Memory) StartJanitor(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Prune()
			case <-stop:
				return
			}
		}
	}()
}
