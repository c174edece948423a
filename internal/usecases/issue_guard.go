package usecases

import (
	"context"

	"go.uber.org/zap"

	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/pkg/logger"
	"nexus.backend/pkg/redis"
)

// RateLimiter is the sliding-window store behind IssueGuard
type RateLimiter interface {
	Allow(ctx context.Context, key string) (redis.RateDecision, error)
}

// IssueGuard bounds code issuance per chat identity
type IssueGuard struct {
	limiter RateLimiter
}

func NewIssueGuard(limiter RateLimiter) *IssueGuard {
	return &IssueGuard{limiter: limiter}
}

// Allow records one issuance attempt for discordID. A denied attempt is not
// recorded and returns a *RateLimitError. The guard fails closed: when its
// store is unreachable no code is issued.
func (g *IssueGuard) Allow(ctx context.Context, discordID string) error {
	if g == nil || g.limiter == nil {
		return nil
	}
	decision, err := g.limiter.Allow(ctx, discordID)
	if err != nil {
		logger.Error(ctx, "Issue guard unavailable", zap.Error(err))
		return domainerrors.StoreError("issue guard", err)
	}
	if !decision.Allowed {
		logger.Warn(ctx, "Link code request rate limited",
			zap.Int("attempts", decision.Count),
			zap.Duration("retry_after", decision.RetryAfter),
		)
		return &domainerrors.RateLimitError{RetryAfter: decision.RetryAfter}
	}
	return nil
}
