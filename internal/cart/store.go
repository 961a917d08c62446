// Package cart keeps the in-progress order of every active chat session.
// State lives in process memory only: a restart drops in-flight carts, which
// matches the conversational contract (the user is asked to order again).
// Finalized orders are durable and never affected.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrEmptyOrder = errors.New("cart is empty")

// Line is one cart position: canonical catalog name plus net quantity.
type Line struct {
	Name     string
	Quantity int
}

type session struct {
	mu         sync.Mutex
	items      map[string]int
	order      []string // insertion order of item names, for stable snapshots
	lastActive time.Time
	gone       bool
}

func (s *session) snapshot() []Line {
	lines := make([]Line, 0, len(s.order))
	for _, name := range s.order {
		if qty := s.items[name]; qty > 0 {
			lines = append(lines, Line{Name: name, Quantity: qty})
		}
	}
	return lines
}

// Store maps session ids to in-progress carts. Operations on distinct
// sessions run concurrently; operations on one session serialize on its
// mutex, including the durable write inside Checkout.
type Store struct {
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewStore(log *slog.Logger) *Store {
	return &Store{
		log:      log,
		sessions: make(map[string]*session),
	}
}

// withSession runs fn while holding the session lock. A session observed as
// gone (cleared between the map read and the lock acquisition) is retried
// from the map, so a late add lands in a fresh cart instead of mutating a
// cart that was already finalized or cancelled.
func (s *Store) withSession(id string, create bool, fn func(*session)) bool {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[id]
		if !ok {
			if !create {
				s.mu.Unlock()
				return false
			}
			sess = &session{items: make(map[string]int), lastActive: time.Now()}
			s.sessions[id] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if sess.gone {
			sess.mu.Unlock()
			continue
		}
		fn(sess)
		sess.lastActive = time.Now()
		sess.mu.Unlock()
		return true
	}
}

// drop marks the session cleared and removes it from the map. Callers must
// hold the session lock.
func (s *Store) drop(id string, sess *session) {
	sess.gone = true
	s.mu.Lock()
	if cur, ok := s.sessions[id]; ok && cur == sess {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
}

// Add accumulates quantity for the item, creating the session on first use.
func (s *Store) Add(sessionID, name string, quantity int) {
	s.withSession(sessionID, true, func(sess *session) {
		if _, ok := sess.items[name]; !ok {
			sess.order = append(sess.order, name)
		}
		sess.items[name] += quantity
	})
}

// Remove decrements the stored quantity, floored at zero; an item reaching
// zero is pruned. It reports whether the item was present at all.
func (s *Store) Remove(sessionID, name string, quantity int) bool {
	present := false
	s.withSession(sessionID, false, func(sess *session) {
		cur, ok := sess.items[name]
		if !ok {
			return
		}
		present = true
		if cur <= quantity {
			delete(sess.items, name)
			for i, n := range sess.order {
				if n == name {
					sess.order = append(sess.order[:i], sess.order[i+1:]...)
					break
				}
			}
			return
		}
		sess.items[name] = cur - quantity
	})
	return present
}

// Clear drops the session's cart entirely.
func (s *Store) Clear(sessionID string) {
	s.withSession(sessionID, false, func(sess *session) {
		s.drop(sessionID, sess)
	})
}

// Snapshot returns the cart lines in insertion order. Unknown sessions yield
// an empty slice; an empty cart is a valid state, not a fault.
func (s *Store) Snapshot(sessionID string) []Line {
	var lines []Line
	s.withSession(sessionID, false, func(sess *session) {
		lines = sess.snapshot()
	})
	return lines
}

// Checkout snapshots the cart and hands the lines to persist while holding
// the session lock. The cart is cleared only after persist returns nil; on
// any error the cart is left untouched so the user can retry the turn.
func (s *Store) Checkout(sessionID string, persist func([]Line) error) error {
	err := ErrEmptyOrder
	s.withSession(sessionID, false, func(sess *session) {
		lines := sess.snapshot()
		if len(lines) == 0 {
			return
		}
		if err = persist(lines); err != nil {
			return
		}
		s.drop(sessionID, sess)
	})
	return err
}

// RunJanitor evicts sessions idle beyond maxIdle until ctx is done. Dropping
// a non-empty cart is user-visible data loss, so it is logged at WARN; empty
// sessions go silently.
func (s *Store) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.evictIdle(maxIdle)
		}
	}
}

func (s *Store) evictIdle(maxIdle time.Duration) {
	type candidate struct {
		id   string
		sess *session
	}

	s.mu.Lock()
	candidates := make([]candidate, 0, len(s.sessions))
	for id, sess := range s.sessions {
		candidates = append(candidates, candidate{id: id, sess: sess})
	}
	s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for _, c := range candidates {
		c.sess.mu.Lock()
		if c.sess.gone || c.sess.lastActive.After(cutoff) {
			c.sess.mu.Unlock()
			continue
		}
		if n := len(c.sess.items); n > 0 {
			s.log.Warn("evicting idle cart with items", "session_id", c.id, "items", n)
		}
		s.drop(c.id, c.sess)
		c.sess.mu.Unlock()
	}
}
