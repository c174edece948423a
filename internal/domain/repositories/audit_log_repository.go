package repositories

import (
	"context"

	"nexus.backend/internal/domain/entities"
	"nexus.backend/pkg/utils"
)

// AuditLogRepository appends and reads link lifecycle entries
type AuditLogRepository interface {
	Create(ctx context.Context, entry *entities.AuditLog) error
	// ListByDiscordID returns entries newest first
	ListByDiscordID(ctx context.Context, discordID string, pagination utils.PaginationParams) ([]*entities.AuditLog, int64, error)
}
