// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"sync"
	"time"

	"github.com/danielhkuo/bestworst/metrics"
	"github.com/danielhkuo/bestworst/scaling"
)

type sessionKey struct {
	participantID string
	sequenceID    int64
}

// session owns the online values of one (participant, sequence) pair.
// mu serialises every read-modify-write of values.
type session struct {
	mu       sync.Mutex
	values   scaling.ValueState // nil until replayed from the result log
	lastUsed time.Time
	closed   bool // evicted; holders must look the key up again
}

// registry maps each key to at most one live session. A session is only
// removed while its mutex is held, so two live sessions never share a key.
type registry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*session
	now      func() time.Time
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[sessionKey]*session),
		now:      time.Now,
	}
}

// get returns the session of key, creating an empty one if needed.
func (r *registry) get(key sessionKey) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok {
		s = &session{}
		r.sessions[key] = s
		metrics.ActiveSessions.Inc()
	}
	return s
}

// acquire returns the live session of key with its mutex held.
func (r *registry) acquire(key sessionKey) *session {
	for {
		s := r.get(key)
		s.mu.Lock()
		if !s.closed {
			s.lastUsed = r.now()
			return s
		}
		s.mu.Unlock()
	}
}

// evict closes s and removes it from the registry. Callers hold s.mu.
func (r *registry) evict(key sessionKey, s *session) {
	s.closed = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[key] == s {
		delete(r.sessions, key)
		metrics.ActiveSessions.Dec()
	}
}

// evictIdle evicts every session last used before cutoff and returns how
// many were removed. Sessions busy with a request are waited for.
func (r *registry) evictIdle(cutoff time.Time) int {
	r.mu.Lock()
	candidates := make(map[sessionKey]*session, len(r.sessions))
	for key, s := range r.sessions {
		candidates[key] = s
	}
	r.mu.Unlock()

	evicted := 0
	for key, s := range candidates {
		s.mu.Lock()
		if !s.closed && s.lastUsed.Before(cutoff) {
			r.evict(key, s)
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// designCache holds loaded designs. Designs never change once stored.
type designCache struct {
	mu      sync.RWMutex
	designs map[int64]scaling.TrialDesign
}

func newDesignCache() *designCache {
	return &designCache{designs: make(map[int64]scaling.TrialDesign)}
}

func (c *designCache) get(sequenceID int64) (scaling.TrialDesign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.designs[sequenceID]
	return d, ok
}

func (c *designCache) put(sequenceID int64, d scaling.TrialDesign) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.designs[sequenceID] = d
}
