package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/infrastructure/models"
)

// IdentityRepository implements identity data operations
type IdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// GetByDiscordID gets an identity by chat id
func (r *IdentityRepository) GetByDiscordID(ctx context.Context, discordID string) (*entities.Identity, error) {
	var m models.Identity
	if err := GetDB(ctx, r.db).Where("discord_id = ?", discordID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, domainerrors.StoreError("get identity", err)
	}
	return r.toEntity(&m), nil
}

// Create inserts a new identity. A concurrent insert of the same chat id
// surfaces as ErrAlreadyExists.
func (r *IdentityRepository) Create(ctx context.Context, identity *entities.Identity) error {
	m := &models.Identity{
		ID:                identity.ID,
		DiscordID:         identity.DiscordID,
		DiscordUsername:   identity.DiscordUsername,
		MinecraftUsername: identity.MinecraftUsername.Ptr(),
		MinecraftID:       identity.MinecraftID.Ptr(),
		IsVerified:        identity.IsVerified,
		CreatedAt:         identity.CreatedAt.UTC(),
		UpdatedAt:         identity.UpdatedAt.UTC(),
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrAlreadyExists
		}
		return domainerrors.StoreError("create identity", err)
	}
	return nil
}

// UpdateDiscordUsername refreshes the cached display name
func (r *IdentityRepository) UpdateDiscordUsername(ctx context.Context, discordID, username string) error {
	return r.update(ctx, "update discord username", discordID, map[string]interface{}{
		"discord_username": username,
	})
}

// SetLink records a verified game account on the identity
func (r *IdentityRepository) SetLink(ctx context.Context, discordID string, account entities.GameAccount) error {
	return r.update(ctx, "set link", discordID, map[string]interface{}{
		"minecraft_id":       account.MinecraftID,
		"minecraft_username": account.MinecraftUsername,
		"is_verified":        true,
	})
}

// ClearLink drops the game account and verified flag. Only a linked identity
// matches, so an identity that is already unlinked reports ErrNotFound.
func (r *IdentityRepository) ClearLink(ctx context.Context, discordID string) error {
	updates := map[string]interface{}{
		"minecraft_id":       nil,
		"minecraft_username": nil,
		"is_verified":        false,
	}
	return r.update(ctx, "clear link", discordID, updates, "is_verified = ?", true)
}

func (r *IdentityRepository) update(ctx context.Context, op, discordID string, updates map[string]interface{}, extra ...interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	q := GetDB(ctx, r.db).Model(&models.Identity{}).Where("discord_id = ?", discordID)
	if len(extra) > 0 {
		q = q.Where(extra[0], extra[1:]...)
	}
	result := q.Updates(updates)
	if result.Error != nil {
		return domainerrors.StoreError(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) toEntity(m *models.Identity) *entities.Identity {
	return &entities.Identity{
		ID:                m.ID,
		DiscordID:         m.DiscordID,
		DiscordUsername:   m.DiscordUsername,
		MinecraftUsername: null.StringFromPtr(m.MinecraftUsername),
		MinecraftID:       null.StringFromPtr(m.MinecraftID),
		IsVerified:        m.IsVerified,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
