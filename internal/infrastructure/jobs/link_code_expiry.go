package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexus.backend/internal/domain/entities"
	domainRepos "nexus.backend/internal/domain/repositories"
	"nexus.backend/internal/infrastructure/metrics"
	"nexus.backend/pkg/logger"
)

const (
	defaultSweepInterval = 60 * time.Second
	defaultSweepBatch    = 100
)

type linkCodeExpiryStore interface {
	GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.LinkCode, error)
	Transition(ctx context.Context, id uuid.UUID, from, to entities.LinkCodeStatus) (int64, error)
	InvalidateAllPending(ctx context.Context) (int64, error)
}

type auditAppender interface {
	Create(ctx context.Context, entry *entities.AuditLog) error
}

// LinkCodeExpiryJob reaps pending codes past their expiry. Consumption checks
// expiry on its own, so the sweep only keeps stored statuses current.
type LinkCodeExpiryJob struct {
	codes    linkCodeExpiryStore
	audit    auditAppender
	uow      domainRepos.UnitOfWork
	metrics  *metrics.Metrics
	interval time.Duration
	batch    int
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewLinkCodeExpiryJob(
	codes domainRepos.LinkCodeRepository,
	audit domainRepos.AuditLogRepository,
	uow domainRepos.UnitOfWork,
	m *metrics.Metrics,
	interval time.Duration,
	batch int,
) *LinkCodeExpiryJob {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &LinkCodeExpiryJob{
		codes:    codes,
		audit:    audit,
		uow:      uow,
		metrics:  m,
		interval: interval,
		batch:    batch,
		now:      func() time.Time { return time.Now().UTC() },
		stop:     make(chan struct{}),
	}
}

// InvalidateOnStartup forces every pending code left by a previous process to
// invalidated. Must run before the transport accepts connections.
func (j *LinkCodeExpiryJob) InvalidateOnStartup(ctx context.Context) (int64, error) {
	n, err := j.codes.InvalidateAllPending(ctx)
	if err != nil {
		logger.Error(ctx, "Startup invalidation of pending link codes failed", zap.Error(err))
		return 0, err
	}
	j.metrics.RecordInvalidated("startup", n)
	logger.Info(ctx, "Invalidated pending link codes from previous run", zap.Int64("count", n))
	return n, nil
}

func (j *LinkCodeExpiryJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting link code expiry job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "Link code expiry job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Link code expiry job stopped")
			return
		case <-ticker.C:
			_, _ = j.SweepExpired(ctx)
		}
	}
}

func (j *LinkCodeExpiryJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// SweepExpired expires every stale pending code in batches and returns how
// many rows this sweep actually transitioned.
func (j *LinkCodeExpiryJob) SweepExpired(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { j.metrics.ObserveSweep(time.Since(started).Seconds()) }()

	now := j.now()
	total := 0
	for {
		expired, err := j.codes.GetExpiredPending(ctx, now, j.batch)
		if err != nil {
			logger.Error(ctx, "Error fetching expired link codes", zap.Error(err))
			return total, err
		}
		if len(expired) == 0 {
			break
		}

		transitioned := 0
		for _, code := range expired {
			changed, err := j.expireOne(ctx, code, now)
			if err != nil {
				logger.Warn(ctx, "Error expiring link code",
					zap.String("code_id", code.ID.String()),
					zap.Error(err),
				)
				continue
			}
			if changed {
				transitioned++
			}
		}
		total += transitioned

		// a batch where nothing moved would be fetched again unchanged
		if len(expired) < j.batch || transitioned == 0 {
			break
		}
	}

	if total > 0 {
		j.metrics.RecordExpired(total)
		logger.Info(ctx, "Expired stale link codes", zap.Int("count", total))
	}
	return total, nil
}

func (j *LinkCodeExpiryJob) expireOne(ctx context.Context, code *entities.LinkCode, now time.Time) (bool, error) {
	changed := false
	err := j.uow.Do(ctx, func(txCtx context.Context) error {
		n, err := j.codes.Transition(txCtx, code.ID, entities.LinkCodeStatusPending, entities.LinkCodeStatusExpired)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		changed = true
		return j.audit.Create(txCtx, entities.NewAuditLog(
			code.DiscordID,
			entities.AuditVerificationExpired,
			"code expired before use",
			now,
		))
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
