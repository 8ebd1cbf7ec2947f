// Package auth implements the single shared-secret session gate.
package auth

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/clock"
	"github.com/bryan-buckman/syllabus/internal/model"
)

// DefaultIdleTimeout ends sessions that have not been used for this long.
const DefaultIdleTimeout = 12 * time.Hour

// Gate checks the shared password and keeps the sessions it opened.
type Gate struct {
	secret      []byte
	defaultDays int
	idle        time.Duration
	clock       clock.Clock

	mu       sync.Mutex
	sessions map[string]*model.Session
}

// NewGate creates a gate for secret. New sessions start with defaultDays in
// both views.
func NewGate(secret string, defaultDays int, idle time.Duration, clk clock.Clock) *Gate {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Gate{
		secret:      []byte(secret),
		defaultDays: defaultDays,
		idle:        idle,
		clock:       clk,
		sessions:    make(map[string]*model.Session),
	}
}

// Check compares password with the secret in constant time. An empty secret
// never matches.
func (g *Gate) Check(password string) bool {
	if len(g.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), g.secret) == 1
}

// Login opens an authenticated session and returns its token and a copy of
// the new session.
func (g *Gate) Login(password string) (string, model.Session, error) {
	if !g.Check(password) {
		return "", model.Session{}, apperrors.ErrInvalidCredentials
	}
	sess := model.NewSession(g.defaultDays)
	sess.Authenticated = true
	sess.LastSeen = g.clock.Now()
	token := uuid.NewString()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweep()
	g.sessions[token] = sess
	return token, *sess, nil
}

// Session returns a copy of the live session for token and refreshes its
// idle timer.
func (g *Gate) Session(token string) (model.Session, bool) {
	return g.Update(token, nil)
}

// Update applies fn to the live session for token under the gate lock and
// returns a copy of the result. A nil fn only refreshes the idle timer.
func (g *Gate) Update(token string, fn func(*model.Session)) (model.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[token]
	if !ok {
		return model.Session{}, false
	}
	now := g.clock.Now()
	if now.Sub(sess.LastSeen) > g.idle {
		delete(g.sessions, token)
		return model.Session{}, false
	}
	sess.LastSeen = now
	if fn != nil {
		fn(sess)
	}
	return *sess, true
}

// Logout forgets token.
func (g *Gate) Logout(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, token)
}

// Len returns the number of stored sessions.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// sweep drops idle sessions. Callers hold g.mu.
func (g *Gate) sweep() {
	now := g.clock.Now()
	for token, sess := range g.sessions {
		if now.Sub(sess.LastSeen) > g.idle {
			delete(g.sessions, token)
		}
	}
}
