package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/domain/repositories"
	"nexus.backend/internal/infrastructure/metrics"
	"nexus.backend/pkg/crypto"
	"nexus.backend/pkg/logger"
	"nexus.backend/pkg/utils"
)

// TelemetryUsecase persists gameplay events reported by the game server
type TelemetryUsecase struct {
	blockRepo repositories.BlockBreakRepository
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewTelemetryUsecase(blockRepo repositories.BlockBreakRepository, m *metrics.Metrics) *TelemetryUsecase {
	return &TelemetryUsecase{
		blockRepo: blockRepo,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (u *TelemetryUsecase) WithClock(now func() time.Time) *TelemetryUsecase {
	u.now = now
	return u
}

// RecordBlockBreak stores one block break. The fingerprint covers player,
// block, position and receive time, so it only collapses events received at
// the same instant; replays arriving later are stored again.
func (u *TelemetryUsecase) RecordBlockBreak(ctx context.Context, input entities.BlockBreakInput) (*entities.BlockBreak, error) {
	if input.MinecraftID == "" || input.Block == "" {
		u.metrics.RecordTelemetry("invalid")
		return nil, fmt.Errorf("%w: player and block are required", domainerrors.ErrInvalidInput)
	}
	pos, err := ParseBlockPosition(input.Position)
	if err != nil {
		u.metrics.RecordTelemetry("invalid")
		return nil, err
	}

	minedAt := u.now()
	block := strings.TrimPrefix(input.Block, BlockNamePrefix)
	event := &entities.BlockBreak{
		ID:          utils.GenerateUUIDv7(),
		MinecraftID: input.MinecraftID,
		Block:       block,
		Position:    pos,
		MinedAt:     minedAt,
		Hash: crypto.Fingerprint(
			input.MinecraftID,
			block,
			strconv.Itoa(pos.X)+","+strconv.Itoa(pos.Y)+","+strconv.Itoa(pos.Z),
			minedAt.Format(time.RFC3339Nano),
		),
	}

	if err := u.blockRepo.Create(ctx, event); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			u.metrics.RecordTelemetry("duplicate")
			logger.Debug(ctx, "Duplicate block break ignored", zap.String("hash", event.Hash))
			return event, nil
		}
		u.metrics.RecordTelemetry("failed")
		return nil, err
	}

	u.metrics.RecordTelemetry("stored")
	logger.Debug(ctx, "Block break recorded",
		zap.String("minecraft_id", event.MinecraftID),
		zap.String("block", event.Block),
	)
	return event, nil
}
