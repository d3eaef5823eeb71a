// Package session keeps the in-memory table of issued session tokens.
package session

import (
	"crypto/rand"
	"sync"
	"time"
)

const (
	// TokenLength is the number of characters in an issued token.
	TokenLength = 32

	alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// Largest multiple of len(alphabet) that fits in a byte. Bytes at or
	// above it are discarded so every symbol is equally likely.
	rejectAbove = 256 - 256%len(alphabet)
)

type entry struct {
	username  string
	createdAt time.Time
}

// Store maps opaque tokens to usernames. All methods are safe for concurrent
// use. Entries live until revoked, or until they are older than the TTL when
// one is set.
type Store struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL makes sessions expire ttl after they were issued. Zero keeps
// sessions until they are revoked.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new token for username. A colliding token overwrites the
// earlier mapping.
func (s *Store) Create(username string) string {
	token := generateToken()

	s.mu.Lock()
	s.sessions[token] = entry{username: username, createdAt: s.now()}
	s.mu.Unlock()

	return token
}

// Resolve returns the username for token.
func (s *Store) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[token]
	if !ok || s.expired(e) {
		return "", false
	}
	return e.username, true
}

// Revoke removes token and returns the username it mapped to.
func (s *Store) Revoke(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	delete(s.sessions, token)
	if s.expired(e) {
		return "", false
	}
	return e.username, true
}

// Contains reports whether token is held and unexpired.
func (s *Store) Contains(token string) bool {
	_, ok := s.Resolve(token)
	return ok
}

// RevokeUser removes every token issued to username and returns how many
// were removed.
func (s *Store) RevokeUser(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, e := range s.sessions {
		if e.username == username {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

// Sweep drops expired entries and returns their tokens so callers can tear
// down anything still bound to them. It is a no-op without a TTL.
func (s *Store) Sweep() []string {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []string
	for token, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, token)
			swept = append(swept, token)
		}
	}
	return swept
}

// Len returns the number of entries held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// TTL returns the configured lifetime; zero means unbounded.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.createdAt) >= s.ttl
}

func generateToken() string {
	token := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)
	for len(token) < TokenLength {
		// crypto/rand.Read never returns an error.
		rand.Read(buf)
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			token = append(token, alphabet[int(b)%len(alphabet)])
			if len(token) == TokenLength {
				break
			}
		}
	}
	return string(token)
}
