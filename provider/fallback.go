package provider

import (
	"context"
	"fmt"

	"agentrun/logging"
)

// Fallback wraps a primary Provider with automatic failover to a backup.
// On any error from the primary (rate limits, API errors, timeouts) the
// same history is retried against the backup; the caller sees one success
// or one combined failure. The composition is opaque to the executor.
type Fallback struct {
	primary Provider
	backup  Provider
	logger  logging.Logger
}

// FallbackOption customizes a Fallback.
type FallbackOption func(*Fallback)

// WithLogger sets the logger used to report failovers.
func WithLogger(l logging.Logger) FallbackOption {
	return func(f *Fallback) { f.logger = l }
}

// NewFallback constructs a failover composite over primary and backup.
func NewFallback(primary, backup Provider, opts ...FallbackOption) *Fallback {
	f := &Fallback{primary: primary, backup: backup, logger: logging.NoOpLogger{}}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Name implements Provider.
func (f *Fallback) Name() string {
	return fmt.Sprintf("fallback(%s|%s)", f.primary.Name(), f.backup.Name())
}

// Complete tries the primary, then the backup. Context cancellation is
// not retried: a cancelled call is a caller decision, not a provider
// fault.
func (f *Fallback) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	c, err := f.primary.Complete(ctx, messages)
	if err == nil {
		return c, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("primary provider failed, falling back",
		"primary", f.primary.Name(), "backup", f.backup.Name(), "error", err)
	c, backupErr := f.backup.Complete(ctx, messages)
	if backupErr != nil {
		return nil, fmt.Errorf("primary failed (%v); backup failed: %w", err, backupErr)
	}
	return c, nil
}
