package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/infrastructure/models"
	"nexus.backend/pkg/utils"
)

// AuditLogRepository appends lifecycle entries; rows are never updated
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *entities.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = utils.GenerateUUIDv7()
	}
	m := &models.AuditLog{
		ID:        entry.ID,
		DiscordID: entry.DiscordID,
		Action:    string(entry.Action),
		Details:   entry.Details.Ptr(),
		Timestamp: entry.Timestamp.UTC(),
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return domainerrors.StoreError("append audit log", err)
	}
	return nil
}

// ListByDiscordID pages an identity's history, newest first. A zero limit returns everything.
func (r *AuditLogRepository) ListByDiscordID(ctx context.Context, discordID string, pagination utils.PaginationParams) ([]*entities.AuditLog, int64, error) {
	var total int64
	if err := GetDB(ctx, r.db).Model(&models.AuditLog{}).
		Where("discord_id = ?", discordID).
		Count(&total).Error; err != nil {
		return nil, 0, domainerrors.StoreError("count audit logs", err)
	}

	q := GetDB(ctx, r.db).
		Where("discord_id = ?", discordID).
		Order("timestamp DESC").
		Order("id DESC")
	if pagination.Limit > 0 {
		q = q.Limit(pagination.Limit).Offset(pagination.CalculateOffset())
	}

	var ms []models.AuditLog
	if err := q.Find(&ms).Error; err != nil {
		return nil, 0, domainerrors.StoreError("list audit logs", err)
	}

	entries := make([]*entities.AuditLog, 0, len(ms))
	for i := range ms {
		entries = append(entries, r.toEntity(&ms[i]))
	}
	return entries, total, nil
}

func (r *AuditLogRepository) toEntity(m *models.AuditLog) *entities.AuditLog {
	e := &entities.AuditLog{
		ID:        m.ID,
		DiscordID: m.DiscordID,
		Action:    entities.AuditAction(m.Action),
		Timestamp: m.Timestamp,
	}
	if m.Details != nil {
		e.Details.SetValid(*m.Details)
	}
	return e
}
