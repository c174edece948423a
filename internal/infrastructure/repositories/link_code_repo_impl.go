package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/infrastructure/models"
)

// LinkCodeRepository implements verification code data operations.
// All status writes are compare-and-swap on the current status.
type LinkCodeRepository struct {
	db *gorm.DB
}

// NewLinkCodeRepository creates a new link code repository
func NewLinkCodeRepository(db *gorm.DB) *LinkCodeRepository {
	return &LinkCodeRepository{db: db}
}

// Create inserts a code. A second pending code for the same owner violates
// the partial unique index and is reported as ErrAlreadyExists.
func (r *LinkCodeRepository) Create(ctx context.Context, code *entities.LinkCode) error {
	m := &models.LinkCode{
		ID:        code.ID,
		DiscordID: code.DiscordID,
		Code:      code.Code,
		Status:    string(code.Status),
		IssuedAt:  code.IssuedAt.UTC(),
		ExpiresAt: code.ExpiresAt.UTC(),
		UpdatedAt: code.IssuedAt.UTC(),
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrAlreadyExists
		}
		return domainerrors.StoreError("create link code", err)
	}
	return nil
}

// GetByCode returns the most recent record carrying the code value
func (r *LinkCodeRepository) GetByCode(ctx context.Context, code string) (*entities.LinkCode, error) {
	return r.first("get link code", GetDB(ctx, r.db).Where("code = ?", code).Order("issued_at DESC"))
}

func (r *LinkCodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.LinkCode, error) {
	return r.first("get link code by id", GetDB(ctx, r.db).Where("id = ?", id))
}

// GetPendingByDiscordID returns the owner's active code, if any
func (r *LinkCodeRepository) GetPendingByDiscordID(ctx context.Context, discordID string) (*entities.LinkCode, error) {
	return r.first("get pending link code", GetDB(ctx, r.db).
		Where("discord_id = ? AND status = ?", discordID, string(entities.LinkCodeStatusPending)))
}

func (r *LinkCodeRepository) first(op string, q *gorm.DB) (*entities.LinkCode, error) {
	var m models.LinkCode
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, domainerrors.StoreError(op, err)
	}
	return r.toEntity(&m), nil
}

// Transition moves a code from one status to another
func (r *LinkCodeRepository) Transition(ctx context.Context, id uuid.UUID, from, to entities.LinkCodeStatus) (int64, error) {
	result := GetDB(ctx, r.db).Model(&models.LinkCode{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, domainerrors.StoreError("transition link code", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkVerified consumes a pending code that has not passed its expiry at now
func (r *LinkCodeRepository) MarkVerified(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	result := GetDB(ctx, r.db).Model(&models.LinkCode{}).
		Where("id = ? AND status = ? AND expires_at >= ?", id, string(entities.LinkCodeStatusPending), now.UTC()).
		Updates(map[string]interface{}{
			"status":     string(entities.LinkCodeStatusVerified),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return 0, domainerrors.StoreError("verify link code", result.Error)
	}
	return result.RowsAffected, nil
}

// InvalidatePendingForOwner supersedes the owner's pending code
func (r *LinkCodeRepository) InvalidatePendingForOwner(ctx context.Context, discordID string) (int64, error) {
	return r.invalidate("invalidate owner link codes",
		GetDB(ctx, r.db).Where("discord_id = ? AND status = ?", discordID, string(entities.LinkCodeStatusPending)))
}

// InvalidateAllPending supersedes every pending code (startup recovery)
func (r *LinkCodeRepository) InvalidateAllPending(ctx context.Context) (int64, error) {
	return r.invalidate("invalidate pending link codes",
		GetDB(ctx, r.db).Where("status = ?", string(entities.LinkCodeStatusPending)))
}

func (r *LinkCodeRepository) invalidate(op string, q *gorm.DB) (int64, error) {
	result := q.Model(&models.LinkCode{}).Updates(map[string]interface{}{
		"status":     string(entities.LinkCodeStatusInvalidated),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, domainerrors.StoreError(op, result.Error)
	}
	return result.RowsAffected, nil
}

// GetExpiredPending lists pending codes whose expiry is before now, oldest first
func (r *LinkCodeRepository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.LinkCode, error) {
	var ms []models.LinkCode
	q := GetDB(ctx, r.db).
		Where("status = ? AND expires_at < ?", string(entities.LinkCodeStatusPending), now.UTC()).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&ms).Error; err != nil {
		return nil, domainerrors.StoreError("get expired link codes", err)
	}

	codes := make([]*entities.LinkCode, 0, len(ms))
	for i := range ms {
		codes = append(codes, r.toEntity(&ms[i]))
	}
	return codes, nil
}

func (r *LinkCodeRepository) toEntity(m *models.LinkCode) *entities.LinkCode {
	return &entities.LinkCode{
		ID:        m.ID,
		DiscordID: m.DiscordID,
		Code:      m.Code,
		Status:    entities.LinkCodeStatus(m.Status),
		IssuedAt:  m.IssuedAt,
		ExpiresAt: m.ExpiresAt,
		UpdatedAt: m.UpdatedAt,
	}
}
