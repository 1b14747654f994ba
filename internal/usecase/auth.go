package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

var ErrEmptyToken = errors.New("empty auth token")

// AuthSession holds the signed-in user for the lifetime of the app.
type AuthSession struct {
	api    ports.AuthAPI
	store  ports.TokenStore
	events ports.EventSink

	mu   sync.Mutex
	user *domain.User
}

func NewAuthSession(api ports.AuthAPI, store ports.TokenStore, events ports.EventSink) *AuthSession {
	return &AuthSession{api: api, store: store, events: events}
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *AuthSession) CurrentUser() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// Refresh loads the stored token and resolves it to a user. A missing token
// or a rejected one leaves the session signed out.
func (s *AuthSession) Refresh(ctx context.Context) (*domain.User, error) {
	token, err := s.store.Load()
	if err != nil {
		s.setUser(nil)
		return nil, fmt.Errorf("load auth token: %w", err)
	}
	if token == "" {
		s.setUser(nil)
		return nil, nil
	}

	user, err := s.api.Me(ctx, token)
	if err != nil {
		log.Warn().Err(err).Msg("could not resolve stored auth token")
		s.setUser(nil)
		return nil, err
	}
	s.setUser(&user)
	return s.CurrentUser(), nil
}

// Login exchanges credentials for a token and signs in with it.
func (s *AuthSession) Login(ctx context.Context, email string, password string) (*domain.User, error) {
	token, err := s.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	return s.LoginWithToken(ctx, token)
}

// LoginWithToken stores token and refreshes the user from it.
func (s *AuthSession) LoginWithToken(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	if err := s.store.Save(token); err != nil {
		return nil, fmt.Errorf("save auth token: %w", err)
	}
	return s.Refresh(ctx)
}

// Signup registers a new account and returns the backend message. It does not sign in.
func (s *AuthSession) Signup(ctx context.Context, email string, name string, password string) (string, error) {
	return s.api.Signup(ctx, strings.TrimSpace(email), strings.TrimSpace(name), password)
}

// Logout forgets the token and the user.
func (s *AuthSession) Logout() error {
	err := s.store.Clear()
	if err != nil {
		log.Warn().Err(err).Msg("could not clear auth token")
	}
	s.setUser(nil)
	return err
}

func (s *AuthSession) setUser(user *domain.User) {
	s.mu.Lock()
	s.user = user
	var published *domain.User
	if user != nil {
		copied := *user
		published = &copied
	}
	s.mu.Unlock()
	s.events.UserChanged(published)
}
