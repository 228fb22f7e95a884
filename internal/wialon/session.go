package wialon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const svcLogin = "token/login"

// Session owns the single active authentication token for the process.
// The token is cached indefinitely once obtained and only invalidated when
// the provider reports it expired. The mutex keeps at most one login in
// flight at a time.
type Session struct {
	client *Client
	token  string

	mu  sync.Mutex
	sid string
}

// NewSession returns a session manager over the given client.
func NewSession(client *Client, token string) *Session {
	return &Session{client: client, token: token}
}

type loginResponse struct {
	Eid string `json:"eid"`
}

// Get returns the cached session id or performs a login.
func (s *Session) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sid != "" {
		return s.sid, nil
	}

	raw, err := s.client.Call(ctx, svcLogin, map[string]any{"token": s.token}, "")
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var out loginResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("login: decode response: %w", err)
	}
	if out.Eid == "" {
		return "", ErrAuthFailed
	}

	s.sid = out.Eid
	return s.sid, nil
}

// Invalidate clears the cached session id. The next Get performs a fresh login.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.sid = ""
	s.mu.Unlock()
}

// Call issues one RPC under the current session. On an invalid-session error
// it invalidates, re-logs-in and retries exactly once; the bound prevents an
// infinite loop when the provider persistently rejects sessions.
func (s *Session) Call(ctx context.Context, svc string, params any) (json.RawMessage, error) {
	sid, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Call(ctx, svc, params, sid)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.InvalidSession() {
		s.Invalidate()
		sid, err = s.Get(ctx)
		if err != nil {
			return nil, err
		}
		return s.client.Call(ctx, svc, params, sid)
	}
	return raw, err
}
