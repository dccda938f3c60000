package service

import (
	"context"
	"time"

	"github.com/vividly/identity-service/internal/repository"
	"go.uber.org/zap"
)

// SessionJanitor periodically deletes sessions past expiry plus the
// retention window. Expired sessions are already unusable; the sweep
// only reclaims storage, so a missed run is harmless.
type SessionJanitor struct {
	sessions  repository.SessionRepository
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

// NewSessionJanitor creates a new session janitor
func NewSessionJanitor(sessions repository.SessionRepository, retention, interval time.Duration, logger *zap.Logger) *SessionJanitor {
	return &SessionJanitor{
		sessions:  sessions,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (j *SessionJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs a single cleanup pass.
func (j *SessionJanitor) Sweep(ctx context.Context) {
	if err := j.sessions.DeleteExpired(ctx, j.retention); err != nil {
		j.logger.Warn("failed to delete expired sessions", zap.Error(err))
	}
}
