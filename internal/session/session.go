package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	KeyAccess   = "access"
	KeyRefresh  = "refresh"
	KeyUsername = "username"
)

// Backend is the durable storage a Session writes through to.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Store is what the API client and the route guard need from a session.
type Store interface {
	Access() string
	Refresh() string
	Username() string
	SetTokens(ctx context.Context, access, refresh string) error
	SetUsername(ctx context.Context, username string) error
	Clear(ctx context.Context) error
}

// Session holds the tokens in memory and persists every change.
type Session struct {
	mu       sync.RWMutex
	backend  Backend
	access   string
	refresh  string
	username string
}

var _ Store = (*Session)(nil)

// Load reads any previously stored session.
func Load(ctx context.Context, backend Backend) (*Session, error) {
	s := &Session{backend: backend}
	var err error
	if s.access, err = backend.Get(ctx, KeyAccess); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.refresh, err = backend.Get(ctx, KeyRefresh); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.username, err = backend.Get(ctx, KeyUsername); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

func (s *Session) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Session) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// SetTokens stores a new access token and, when non-empty, a new refresh
// token. The username is re-derived from the access token when it carries one.
func (s *Session) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(ctx, KeyAccess, access); err != nil {
		return err
	}
	s.access = access

	if refresh != "" {
		if err := s.backend.Set(ctx, KeyRefresh, refresh); err != nil {
			return err
		}
		s.refresh = refresh
	}

	if claims, err := Decode(access); err == nil && claims.Name() != "" && claims.Name() != s.username {
		if err := s.backend.Set(ctx, KeyUsername, claims.Name()); err != nil {
			return err
		}
		s.username = claims.Name()
	}
	return nil
}

func (s *Session) SetUsername(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Set(ctx, KeyUsername, username); err != nil {
		return err
	}
	s.username = username
	return nil
}

// Clear forgets every token. The in-memory state is dropped even when the
// backend fails so the client never keeps using a session it meant to end.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh, s.username = "", "", ""
	if err := s.backend.Delete(ctx, KeyAccess, KeyRefresh, KeyUsername); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Authenticated reports whether any credential is stored at all.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != "" || s.refresh != ""
}

// Memory is an in-process Backend, used when no durable storage is wanted.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("empty key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}
