package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/ethbinder/internal/observability/metrics"
)

// verifier is the interface required for logging middleware.
type verifier interface {
	Verify(ctx context.Context, req Request) *Result
}

// LoggingMiddleware returns a service middleware that logs and counts
// every verification.
func LoggingMiddleware(logger *slog.Logger) func(verifier) *loggingMiddleware {
	return func(next verifier) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   verifier
	logger *slog.Logger
}

func (m *loggingMiddleware) Verify(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := m.next.Verify(ctx, req)
	duration := time.Since(start)

	metrics.Verification(string(res.Outcome), duration)

	level := slog.LevelInfo
	if res.Outcome == OutcomeMissingToken || res.Outcome == OutcomeFetchFailed {
		level = slog.LevelWarn
	}
	m.logger.Log(ctx, level, "Verify",
		"verification_id", res.ID,
		"handle", res.Handle,
		"repo", res.Repo,
		"outcome", res.Outcome,
		"reason", res.Reason,
		"issue", res.IssueNumber,
		"duration", duration,
	)
	for _, entry := range res.Trace {
		m.logger.Debug("trace", "verification_id", res.ID, "step", entry)
	}
	return res
}
