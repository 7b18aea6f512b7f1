// Package session holds the signed-in identity of the client. A Session is
// created explicitly and passed to whatever needs the bearer token.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/buildlog/internal/auth"
)

var (
	ErrNotSignedIn    = errors.New("not signed in")
	ErrSessionExpired = errors.New("session expired")
)

var now = time.Now

type Session struct {
	mu        sync.RWMutex
	token     string
	userID    string
	expiresAt time.Time
}

func New() *Session {
	return &Session{}
}

// SignIn adopts token. The signature is not checked here, the backend does
// that on every request; the claims are only read for the user id and the
// expiry.
func (s *Session) SignIn(token string) error {
	token = strings.TrimSpace(token)
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
		if !exp.After(now()) {
			return ErrSessionExpired
		}
	}

	s.mu.Lock()
	s.token, s.userID, s.expiresAt = token, claims.UserID, exp
	s.mu.Unlock()
	return nil
}

func (s *Session) SignOut() {
	s.mu.Lock()
	s.token, s.userID, s.expiresAt = "", "", time.Time{}
	s.mu.Unlock()
}

func (s *Session) SignedIn() bool {
	_, err := s.Token()
	return err == nil
}

// Token returns the bearer token to attach to backend requests.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return "", err
	}
	return s.token, nil
}

func (s *Session) UserID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return "", err
	}
	return s.userID, nil
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) checkLocked() error {
	if s.token == "" {
		return ErrNotSignedIn
	}
	if !s.expiresAt.IsZero() && !s.expiresAt.After(now()) {
		return ErrSessionExpired
	}
	return nil
}
