package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"nexus.backend/internal/domain/entities"
)

// LinkCodeRepository defines verification code data operations.
// Every status change is conditional on the current status so concurrent
// writers never overwrite a terminal state; callers inspect the affected rows.
type LinkCodeRepository interface {
	Create(ctx context.Context, code *entities.LinkCode) error
	GetByCode(ctx context.Context, code string) (*entities.LinkCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.LinkCode, error)
	GetPendingByDiscordID(ctx context.Context, discordID string) (*entities.LinkCode, error)
	// Transition moves id from one status to another and reports rows affected
	Transition(ctx context.Context, id uuid.UUID, from, to entities.LinkCodeStatus) (int64, error)
	// MarkVerified moves a pending code to verified only while it is unexpired at now
	MarkVerified(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	InvalidatePendingForOwner(ctx context.Context, discordID string) (int64, error)
	InvalidateAllPending(ctx context.Context) (int64, error)
	GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.LinkCode, error)
}
