// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "context"

// GatewayStore holds the gateway's persistent state.
type GatewayStore interface {
	Executions() ExecutionLog
	Tokens() TokenStore
	Close() error
}

// ExecutionLog records every dispatcher invocation.
type ExecutionLog interface {
	Append(ctx context.Context, rec *ExecutionRecord) error
	Query(ctx context.Context, filter ExecutionFilter) ([]*ExecutionRecord, error)
}

// TokenStore persists OAuth tokens per tool and subject.
type TokenStore interface {
	Put(ctx context.Context, tok *OAuthToken) error
	Get(ctx context.Context, tool, subject string) (*OAuthToken, error)
	Delete(ctx context.Context, tool, subject string) error
}
