package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie holding the console session id.
const SessionCookieName = "nocturne_session"

// JWTCookieName is the cookie holding the upstream access token. It exists
// for the route guard's page-level checks; API calls use the server-side
// session record instead.
const JWTCookieName = "jwt"

// Session is the server-side record behind a console session cookie. It
// replaces the browser-local-storage token scattering of the old UI with a
// single object owning the tokens and their lifecycle.
type Session struct {
	ID           string
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(time.Now())
}

// SessionStore holds active console sessions.
type SessionStore interface {
	Create(userID, email, accessToken, refreshToken string, ttl time.Duration) *Session
	Get(id string) (*Session, bool)
	Delete(id string)
}

// MemorySessionStore is an in-process session store with periodic expiry
// sweeps. Sessions do not survive a restart; users simply log in again.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	stopCh   chan struct{}
}

// NewMemorySessionStore creates a session store and starts its sweeper.
func NewMemorySessionStore() *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}
	go store.sweep()
	return store
}

// Create registers a new session and returns it
func (s *MemorySessionStore) Create(userID, email, accessToken, refreshToken string, ttl time.Duration) *Session {
	session := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		Email:        email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CreatedAt:    time.Now(),
	}
	if ttl > 0 {
		session.ExpiresAt = session.CreatedAt.Add(ttl)
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get returns a live session by id
func (s *MemorySessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || session.Expired() {
		return nil, false
	}
	return session, true
}

// Delete removes a session
func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Close stops the expiry sweeper
func (s *MemorySessionStore) Close() {
	close(s.stopCh)
}

func (s *MemorySessionStore) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for id, session := range s.sessions {
				if session.Expired() {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
