package repositories

import (
	"context"

	"nexus.backend/internal/domain/entities"
)

// BlockBreakRepository stores gameplay telemetry
type BlockBreakRepository interface {
	// Create inserts the event; a duplicate hash is reported as errors.ErrAlreadyExists
	Create(ctx context.Context, event *entities.BlockBreak) error
	CountByMinecraftID(ctx context.Context, minecraftID string) (int64, error)
}
