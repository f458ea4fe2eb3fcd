// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "time"

// ExecutionRecord is one dispatcher invocation.
type ExecutionRecord struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Caller     string         `json:"caller"`
	Tool       string         `json:"tool_name"`
	Capability string         `json:"capability"`
	Action     string         `json:"action"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Duration   time.Duration  `json:"duration_ns"`
	Details    map[string]any `json:"details,omitempty"`
}

// ExecutionFilter specifies criteria for querying the execution log.
// Results are newest first.
type ExecutionFilter struct {
	Tool       string
	Capability string
	Caller     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// OAuthToken is a stored OAuth credential.
type OAuthToken struct {
	Tool         string
	Subject      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scopes       []string
	UpdatedAt    time.Time
}

// DefaultQueryLimit caps execution queries that specify no limit.
const DefaultQueryLimit = 1000
