// Package session keeps one authenticated remote-client handle per
// operator, from login to logout.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

// Session is an authenticated handle owned by exactly one operator.
type Session struct {
	OperatorID int64
	Account    userbot.Account
	Client     userbot.Client
}

// Registry is the concurrency-safe session table. Only the auth flow
// creates entries; only logout or explicit invalidation removes them.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

func (r *Registry) Get(operatorID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[operatorID]
	return s, ok
}

// Put installs the operator's session. A replaced session has its handle
// disconnected so the old connection does not leak.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	old := r.sessions[s.OperatorID]
	r.sessions[s.OperatorID] = s
	r.mu.Unlock()

	if old != nil && old.Client != s.Client {
		disconnect(old.Client, s.OperatorID)
	}
}

// Remove drops the operator's session, disconnecting the handle first.
// Reports whether a session existed.
func (r *Registry) Remove(operatorID int64) bool {
	r.mu.Lock()
	s, ok := r.sessions[operatorID]
	delete(r.sessions, operatorID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	disconnect(s.Client, operatorID)
	return true
}

// Logout invalidates the remote session, then removes it like Remove.
// Reports whether a session existed; calling it without one is a no-op.
func (r *Registry) Logout(ctx context.Context, operatorID int64) bool {
	r.mu.Lock()
	s, ok := r.sessions[operatorID]
	delete(r.sessions, operatorID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := s.Client.LogOut(ctx); err != nil {
		log.Warn().Err(err).Int64("operator", operatorID).Msg("remote log out failed")
	}
	disconnect(s.Client, operatorID)
	return true
}

func disconnect(c userbot.Client, operatorID int64) {
	if err := c.Disconnect(); err != nil {
		log.Warn().Err(err).Int64("operator", operatorID).Msg("disconnect failed")
	}
}
