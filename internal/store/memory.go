// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

func init() {
	RegisterBackend("memory", func(string) (GatewayStore, error) {
		return NewMemoryGatewayStore(), nil
	})
}

// MemoryGatewayStore is a process-local GatewayStore. Nothing survives Close.
type MemoryGatewayStore struct {
	executions *memoryExecutionLog
	tokens     *memoryTokenStore
}

// NewMemoryGatewayStore returns an empty in-memory store.
func NewMemoryGatewayStore() *MemoryGatewayStore {
	return &MemoryGatewayStore{
		executions: &memoryExecutionLog{},
		tokens:     &memoryTokenStore{tokens: make(map[tokenKey]OAuthToken)},
	}
}

func (m *MemoryGatewayStore) Executions() ExecutionLog { return m.executions }
func (m *MemoryGatewayStore) Tokens() TokenStore       { return m.tokens }
func (m *MemoryGatewayStore) Close() error             { return nil }

type memoryExecutionLog struct {
	mu      sync.RWMutex
	records []ExecutionRecord
}

func (l *memoryExecutionLog) Append(_ context.Context, rec *ExecutionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("appending execution record: %w", ErrInvalidInput)
	}
	cp := *rec
	cp.Details = maps.Clone(rec.Details)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, cp)
	return nil
}

func (l *memoryExecutionLog) Query(_ context.Context, f ExecutionFilter) ([]*ExecutionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*ExecutionRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		r := l.records[i]
		if !matches(&r, f) {
			continue
		}
		out = append(out, &r)
	}
	slices.SortStableFunc(out, func(a, b *ExecutionRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(r *ExecutionRecord, f ExecutionFilter) bool {
	switch {
	case f.Tool != "" && r.Tool != f.Tool:
		return false
	case f.Capability != "" && r.Capability != f.Capability:
		return false
	case f.Caller != "" && r.Caller != f.Caller:
		return false
	case !f.From.IsZero() && r.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && !r.Timestamp.Before(f.To):
		return false
	}
	return true
}

type tokenKey struct{ tool, subject string }

type memoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[tokenKey]OAuthToken
}

func (s *memoryTokenStore) Put(_ context.Context, tok *OAuthToken) error {
	if tok == nil || tok.Tool == "" || tok.Subject == "" || tok.AccessToken == "" {
		return fmt.Errorf("storing oauth token: %w", ErrInvalidInput)
	}
	cp := *tok
	cp.Scopes = slices.Clone(tok.Scopes)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenKey{tok.Tool, tok.Subject}] = cp
	return nil
}

func (s *memoryTokenStore) Get(_ context.Context, tool, subject string) (*OAuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[tokenKey{tool, subject}]
	if !ok {
		return nil, fmt.Errorf("oauth token %s/%s: %w", tool, subject, ErrNotFound)
	}
	tok.Scopes = slices.Clone(tok.Scopes)
	return &tok, nil
}

func (s *memoryTokenStore) Delete(_ context.Context, tool, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tokenKey{tool, subject}
	if _, ok := s.tokens[k]; !ok {
		return fmt.Errorf("oauth token %s/%s: %w", tool, subject, ErrNotFound)
	}
	delete(s.tokens, k)
	return nil
}
