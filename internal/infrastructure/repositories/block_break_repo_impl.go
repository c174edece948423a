package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/infrastructure/models"
)

// BlockBreakRepository stores gameplay telemetry keyed by fingerprint
type BlockBreakRepository struct {
	db *gorm.DB
}

func NewBlockBreakRepository(db *gorm.DB) *BlockBreakRepository {
	return &BlockBreakRepository{db: db}
}

func (r *BlockBreakRepository) Create(ctx context.Context, event *entities.BlockBreak) error {
	m := &models.BlockBreak{
		ID:          event.ID,
		MinecraftID: event.MinecraftID,
		Block:       event.Block,
		PositionX:   event.Position.X,
		PositionY:   event.Position.Y,
		PositionZ:   event.Position.Z,
		MinedAt:     event.MinedAt.UTC(),
		Hash:        event.Hash,
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrAlreadyExists
		}
		return domainerrors.StoreError("create block break", err)
	}
	return nil
}

func (r *BlockBreakRepository) CountByMinecraftID(ctx context.Context, minecraftID string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&models.BlockBreak{}).
		Where("minecraft_id = ?", minecraftID).
		Count(&count).Error; err != nil {
		return 0, domainerrors.StoreError("count block breaks", err)
	}
	return count, nil
}
