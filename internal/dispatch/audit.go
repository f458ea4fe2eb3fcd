// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/cardhost/internal/plugin"
	"github.com/sigil-dev/cardhost/internal/redact"
	"github.com/sigil-dev/cardhost/internal/store"
)

// auditLogEscalationThreshold is the number of consecutive execution-log
// failures after which they are logged at error level.
const auditLogEscalationThreshold = 3

// record appends a best-effort execution record. Parameters are not stored;
// they may carry secrets.
func (d *Dispatcher) record(ctx context.Context, req Request, caller plugin.Caller, res Result, elapsed time.Duration, details map[string]any) {
	if d.executions == nil {
		return
	}

	rec := &store.ExecutionRecord{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Caller:     caller.Identity,
		Tool:       req.ToolName,
		Capability: req.Capability,
		Action:     req.Action,
		Success:    res.Success,
		Error:      res.Error,
		ErrorCode:  res.ErrorCode,
		Duration:   elapsed,
		Details:    redact.Default().Map(details),
	}

	// A cancelled request context must not drop the record.
	if err := d.executions.Append(context.WithoutCancel(ctx), rec); err != nil {
		consecutive := d.auditFailCount.Add(1)
		level := slog.LevelWarn
		if consecutive >= auditLogEscalationThreshold {
			level = slog.LevelError
		}
		d.log.LogAttrs(ctx, level, "execution log append failed",
			slog.Any("error", err),
			slog.String("tool", req.ToolName),
			slog.String("capability", req.Capability),
			slog.Int64("consecutive_failures", consecutive),
		)
		return
	}
	d.auditFailCount.Store(0)
}
