// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package dispatch

import (
	"fmt"

	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// ToolNotFoundError reports a tool that is not a running plugin.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string         { return "tool not found" }
func (e *ToolNotFoundError) ErrorCode() cherr.Code { return cherr.CodeDispatchToolNotFound }

// CapabilityNotFoundError reports a (capability, action) pair missing from
// the tool's handler table.
type CapabilityNotFoundError struct {
	Tool       string
	Capability string
	Action     string
}

func (e *CapabilityNotFoundError) Error() string { return "capability not found" }
func (e *CapabilityNotFoundError) ErrorCode() cherr.Code {
	return cherr.CodeDispatchCapabilityNotFound
}

// CardNotFoundError reports a card id the registry does not hold.
type CardNotFoundError struct {
	CardID string
}

func (e *CardNotFoundError) Error() string         { return "card not found" }
func (e *CardNotFoundError) ErrorCode() cherr.Code { return cherr.CodeDispatchCardNotFound }

// ActionNotFoundError reports an action id missing from a card.
type ActionNotFoundError struct {
	CardID string
	Action string
}

func (e *ActionNotFoundError) Error() string         { return "action not found" }
func (e *ActionNotFoundError) ErrorCode() cherr.Code { return cherr.CodeDispatchActionNotFound }

// ToolExecutionError wraps any failure raised inside a handler, including panics.
type ToolExecutionError struct {
	Tool       string
	Capability string
	Action     string
	Message    string
	Err        error
}

func (e *ToolExecutionError) Error() string { return e.Message }
func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ErrorCode keeps the handler's own code when it set one.
func (e *ToolExecutionError) ErrorCode() cherr.Code {
	if e.Err != nil {
		if code := cherr.CodeOf(e.Err); code != "" {
			return code
		}
	}
	return cherr.CodeDispatchExecutionFailure
}

func panicError(tool, capability, action string, r any) *ToolExecutionError {
	return &ToolExecutionError{
		Tool:       tool,
		Capability: capability,
		Action:     action,
		Message:    fmt.Sprintf("%s.%s panicked: %v", capability, action, r),
	}
}
