package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/domain/repositories"
	"nexus.backend/internal/infrastructure/metrics"
	"nexus.backend/pkg/logger"
	"nexus.backend/pkg/utils"
)

// errLostRace signals that the conditional verify matched no row
var errLostRace = errors.New("link code changed during consumption")

type issueGuard interface {
	Allow(ctx context.Context, discordID string) error
}

// AccountLinkUsecase owns the verification code state machine.
// There is no in-process locking: every status change is a conditional
// update in the record store keyed on the expected prior status.
type AccountLinkUsecase struct {
	identityRepo repositories.IdentityRepository
	codeRepo     repositories.LinkCodeRepository
	auditRepo    repositories.AuditLogRepository
	uow          repositories.UnitOfWork
	generator    CodeGenerator
	guard        issueGuard
	metrics      *metrics.Metrics
	codeTTL      time.Duration
	now          func() time.Time
}

// NewAccountLinkUsecase creates a new account link usecase
func NewAccountLinkUsecase(
	identityRepo repositories.IdentityRepository,
	codeRepo repositories.LinkCodeRepository,
	auditRepo repositories.AuditLogRepository,
	uow repositories.UnitOfWork,
	generator CodeGenerator,
	guard issueGuard,
	m *metrics.Metrics,
	codeTTL time.Duration,
) *AccountLinkUsecase {
	if codeTTL <= 0 {
		codeTTL = DefaultLinkCodeTTL
	}
	return &AccountLinkUsecase{
		identityRepo: identityRepo,
		codeRepo:     codeRepo,
		auditRepo:    auditRepo,
		uow:          uow,
		generator:    generator,
		guard:        guard,
		metrics:      m,
		codeTTL:      codeTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source
func (u *AccountLinkUsecase) WithClock(now func() time.Time) *AccountLinkUsecase {
	u.now = now
	return u
}

// EnsureIdentity returns the identity for discordID, creating it on first
// interaction. A non-empty username refreshes the stored display name.
func (u *AccountLinkUsecase) EnsureIdentity(ctx context.Context, discordID, username string) (*entities.Identity, error) {
	if strings.TrimSpace(discordID) == "" {
		return nil, fmt.Errorf("%w: discord id is required", domainerrors.ErrInvalidInput)
	}

	identity, err := u.identityRepo.GetByDiscordID(ctx, discordID)
	if err == nil {
		if username != "" && identity.DiscordUsername != username {
			if err := u.identityRepo.UpdateDiscordUsername(ctx, discordID, username); err != nil {
				return nil, err
			}
			identity.DiscordUsername = username
		}
		return identity, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	now := u.now()
	identity = &entities.Identity{
		ID:              utils.GenerateUUIDv7(),
		DiscordID:       discordID,
		DiscordUsername: username,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.identityRepo.Create(ctx, identity); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			// created concurrently by another request
			return u.identityRepo.GetByDiscordID(ctx, discordID)
		}
		return nil, err
	}
	logger.Info(ctx, "Identity created", zap.String("discord_id", discordID))
	return identity, nil
}

// IssueCode supersedes the owner's pending code, if any, and issues a new one.
// Nothing is committed when it fails.
func (u *AccountLinkUsecase) IssueCode(ctx context.Context, discordID string) (*entities.LinkCode, error) {
	if _, err := u.EnsureIdentity(ctx, discordID, ""); err != nil {
		return nil, err
	}
	return u.issueCode(ctx, discordID, nil)
}

// issueCode retries issuance when a concurrent request wins the pending-code
// slot. A non-nil replacing identity has its link cleared in the same
// transaction as the new code.
func (u *AccountLinkUsecase) issueCode(ctx context.Context, discordID string, replacing *entities.Identity) (*entities.LinkCode, error) {
	var lastErr error
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		value, err := u.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate link code: %w", err)
		}
		code, err := u.issueOnce(ctx, discordID, value, replacing)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, domainerrors.ErrAlreadyExists) {
			return nil, asStoreError("issue link code", err)
		}
		lastErr = err
		logger.Debug(ctx, "Concurrent link code issuance, retrying", zap.Int("attempt", attempt))
	}
	return nil, domainerrors.StoreError("issue link code", lastErr)
}

func (u *AccountLinkUsecase) issueOnce(ctx context.Context, discordID, value string, replacing *entities.Identity) (*entities.LinkCode, error) {
	now := u.now()
	code := &entities.LinkCode{
		ID:        utils.GenerateUUIDv7(),
		DiscordID: discordID,
		Code:      value,
		Status:    entities.LinkCodeStatusPending,
		IssuedAt:  now,
		ExpiresAt: now.Add(u.codeTTL),
		UpdatedAt: now,
	}

	var superseded int64
	var unlinked bool
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if replacing != nil {
			ok, err := u.clearLink(txCtx, replacing, now)
			if err != nil {
				return err
			}
			unlinked = ok
		}
		n, err := u.codeRepo.InvalidatePendingForOwner(txCtx, discordID)
		if err != nil {
			return err
		}
		superseded = n
		if err := u.codeRepo.Create(txCtx, code); err != nil {
			return err
		}
		return u.auditRepo.Create(txCtx, entities.NewAuditLog(
			discordID,
			entities.AuditVerificationStarted,
			fmt.Sprintf("code expires at %s", code.ExpiresAt.Format(time.RFC3339)),
			now,
		))
	})
	if err != nil {
		return nil, err
	}

	if unlinked {
		logger.Info(ctx, "Account unlinked", zap.String("discord_id", discordID))
	}
	u.metrics.RecordCodeIssued()
	u.metrics.RecordInvalidated("superseded", superseded)
	logger.Info(ctx, "Link code issued",
		zap.String("discord_id", discordID),
		zap.Int64("superseded", superseded),
		zap.Time("expires_at", code.ExpiresAt),
	)
	return code, nil
}

// ConsumeCode verifies a code typed in game and links the owning identity to
// the game account. Rejections are ErrInvalidCode, ErrExpiredCode or
// ErrAlreadyConsumed; at most one concurrent consumer of a code succeeds.
func (u *AccountLinkUsecase) ConsumeCode(ctx context.Context, input entities.ConsumeLinkCodeInput) (*entities.LinkOutcome, error) {
	value := strings.TrimSpace(input.Code)
	if value == "" {
		u.metrics.RecordConsumption(consumeResultInvalid)
		return nil, domainerrors.ErrInvalidCode
	}
	if input.MinecraftID == "" || input.MinecraftUsername == "" {
		return nil, fmt.Errorf("%w: game account is required", domainerrors.ErrInvalidInput)
	}

	record, err := u.codeRepo.GetByCode(ctx, value)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			u.metrics.RecordConsumption(consumeResultInvalid)
			return nil, domainerrors.ErrInvalidCode
		}
		u.metrics.RecordConsumption(consumeResultError)
		return nil, err
	}

	now := u.now()
	if rejection := rejectionFor(record, now); rejection != nil {
		if record.Status == entities.LinkCodeStatusPending {
			u.expireLazily(ctx, record, now)
		}
		return nil, u.reject(ctx, record, input, rejection)
	}

	outcome, err := u.verify(ctx, record, input, now)
	if errors.Is(err, errLostRace) {
		latest, getErr := u.codeRepo.GetByID(ctx, record.ID)
		if getErr != nil {
			u.metrics.RecordConsumption(consumeResultError)
			return nil, getErr
		}
		rejection := rejectionFor(latest, now)
		if rejection == nil {
			u.metrics.RecordConsumption(consumeResultError)
			return nil, domainerrors.StoreError("verify link code", err)
		}
		if latest.Status == entities.LinkCodeStatusPending {
			u.expireLazily(ctx, latest, now)
		}
		return nil, u.reject(ctx, latest, input, rejection)
	}
	if err != nil {
		u.metrics.RecordConsumption(consumeResultError)
		return nil, asStoreError("verify link code", err)
	}

	u.metrics.RecordConsumption(consumeResultSuccess)
	logger.Info(ctx, "Account linked",
		zap.String("discord_id", outcome.DiscordID),
		zap.String("minecraft_id", outcome.MinecraftID),
		zap.String("previous_minecraft_username", outcome.PreviousMinecraftUsername),
	)
	return outcome, nil
}

func (u *AccountLinkUsecase) verify(ctx context.Context, record *entities.LinkCode, input entities.ConsumeLinkCodeInput, now time.Time) (*entities.LinkOutcome, error) {
	outcome := &entities.LinkOutcome{
		DiscordID:         record.DiscordID,
		MinecraftID:       input.MinecraftID,
		MinecraftUsername: input.MinecraftUsername,
		LinkedAt:          now,
	}

	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		n, err := u.codeRepo.MarkVerified(txCtx, record.ID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return errLostRace
		}

		identity, err := u.identityRepo.GetByDiscordID(txCtx, record.DiscordID)
		switch {
		case errors.Is(err, domainerrors.ErrNotFound):
			if err := u.identityRepo.Create(txCtx, &entities.Identity{
				ID:        utils.GenerateUUIDv7(),
				DiscordID: record.DiscordID,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		case err != nil:
			return err
		case identity.IsLinked():
			outcome.PreviousMinecraftUsername = identity.MinecraftUsername.String
		}

		if err := u.identityRepo.SetLink(txCtx, record.DiscordID, entities.GameAccount{
			MinecraftID:       input.MinecraftID,
			MinecraftUsername: input.MinecraftUsername,
		}); err != nil {
			return err
		}

		details := fmt.Sprintf("linked %s (%s)", input.MinecraftUsername, input.MinecraftID)
		if outcome.PreviousMinecraftUsername != "" {
			details += fmt.Sprintf("; replaced %s", outcome.PreviousMinecraftUsername)
		}
		return u.auditRepo.Create(txCtx, entities.NewAuditLog(record.DiscordID, entities.AuditAccountLinked, details, now))
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// rejectionFor classifies a record that cannot be consumed at now; nil means consumable
func rejectionFor(record *entities.LinkCode, now time.Time) error {
	switch record.Status {
	case entities.LinkCodeStatusPending:
		if record.IsExpiredAt(now) {
			return domainerrors.ErrExpiredCode
		}
		return nil
	case entities.LinkCodeStatusExpired:
		return domainerrors.ErrExpiredCode
	case entities.LinkCodeStatusVerified:
		return domainerrors.ErrAlreadyConsumed
	default:
		return domainerrors.ErrInvalidCode
	}
}

// expireLazily moves a stale pending code to expired, auditing only an actual transition
func (u *AccountLinkUsecase) expireLazily(ctx context.Context, record *entities.LinkCode, now time.Time) {
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		n, err := u.codeRepo.Transition(txCtx, record.ID, entities.LinkCodeStatusPending, entities.LinkCodeStatusExpired)
		if err != nil || n == 0 {
			return err
		}
		u.metrics.RecordExpired(1)
		return u.auditRepo.Create(txCtx, entities.NewAuditLog(
			record.DiscordID, entities.AuditVerificationExpired, "code expired before use", now,
		))
	})
	if err != nil {
		logger.Warn(ctx, "Lazy link code expiry failed", zap.String("code_id", record.ID.String()), zap.Error(err))
	}
}

// reject records a failed attempt against an existing code. The audit write is best effort.
func (u *AccountLinkUsecase) reject(ctx context.Context, record *entities.LinkCode, input entities.ConsumeLinkCodeInput, rejection error) error {
	switch {
	case errors.Is(rejection, domainerrors.ErrExpiredCode):
		u.metrics.RecordConsumption(consumeResultExpired)
	case errors.Is(rejection, domainerrors.ErrAlreadyConsumed):
		u.metrics.RecordConsumption(consumeResultConsumed)
	default:
		u.metrics.RecordConsumption(consumeResultInvalid)
	}

	details := fmt.Sprintf("%s: attempted by %s (%s)", rejection.Error(), input.MinecraftUsername, input.MinecraftID)
	if err := u.auditRepo.Create(ctx, entities.NewAuditLog(record.DiscordID, entities.AuditVerificationFailed, details, u.now())); err != nil {
		logger.Warn(ctx, "Failed to audit rejected link attempt", zap.Error(err))
	}
	logger.Info(ctx, "Link code rejected",
		zap.String("discord_id", record.DiscordID),
		zap.String("status", string(record.Status)),
		zap.Error(rejection),
	)
	return rejection
}

// Unlink detaches the game account. Unlinking an identity that is missing or
// not linked succeeds without writing an audit entry.
func (u *AccountLinkUsecase) Unlink(ctx context.Context, discordID string) error {
	identity, err := u.identityRepo.GetByDiscordID(ctx, discordID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !identity.IsVerified {
		return nil
	}

	var unlinked bool
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		ok, err := u.clearLink(txCtx, identity, u.now())
		unlinked = ok
		return err
	})
	if err != nil {
		return asStoreError("unlink", err)
	}

	if unlinked {
		logger.Info(ctx, "Account unlinked", zap.String("discord_id", discordID))
	}
	return nil
}

// clearLink detaches identity's game account and audits it inside the
// caller's transaction. It reports false when a concurrent unlink already won.
func (u *AccountLinkUsecase) clearLink(txCtx context.Context, identity *entities.Identity, now time.Time) (bool, error) {
	err := u.identityRepo.ClearLink(txCtx, identity.DiscordID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, u.auditRepo.Create(txCtx, entities.NewAuditLog(
		identity.DiscordID,
		entities.AuditAccountUnlinked,
		fmt.Sprintf("unlinked %s", identity.MinecraftUsername.String),
		now,
	))
}

// RequestCode is the chat-side entry point. Replacing a verified link takes
// two calls: without Confirm it only reports what would be replaced and
// consumes no rate-limit budget.
func (u *AccountLinkUsecase) RequestCode(ctx context.Context, input *entities.RequestLinkCodeInput) (*entities.LinkCodeResponse, error) {
	if strings.TrimSpace(input.DiscordID) == "" {
		return nil, fmt.Errorf("%w: discord id is required", domainerrors.ErrInvalidInput)
	}

	current, err := u.identityRepo.GetByDiscordID(ctx, input.DiscordID)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}
	linked := err == nil && current.IsLinked()
	if linked && !input.Confirm {
		return nil, &domainerrors.ConfirmationRequiredError{MinecraftUsername: current.MinecraftUsername.String}
	}

	if u.guard != nil {
		if err := u.guard.Allow(ctx, input.DiscordID); err != nil {
			if errors.Is(err, domainerrors.ErrRateLimited) {
				u.metrics.RecordRateLimited()
			}
			return nil, err
		}
	}

	if _, err := u.EnsureIdentity(ctx, input.DiscordID, input.DiscordUsername); err != nil {
		return nil, err
	}

	var replacing *entities.Identity
	if linked {
		replacing = current
	}
	code, err := u.issueCode(ctx, input.DiscordID, replacing)
	if err != nil {
		return nil, err
	}

	return &entities.LinkCodeResponse{
		Code:          code.Code,
		ExpiresAt:     code.ExpiresAt,
		ExpiresInSecs: int64(u.codeTTL / time.Second),
		Superseded:    linked,
	}, nil
}

// GetAccount returns the identity and its pending, unexpired code if one exists
func (u *AccountLinkUsecase) GetAccount(ctx context.Context, discordID string) (*entities.AccountView, error) {
	identity, err := u.identityRepo.GetByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}

	view := &entities.AccountView{Identity: identity}
	pending, err := u.codeRepo.GetPendingByDiscordID(ctx, discordID)
	switch {
	case errors.Is(err, domainerrors.ErrNotFound):
	case err != nil:
		return nil, err
	case !pending.IsExpiredAt(u.now()):
		view.PendingCode = pending
	}
	return view, nil
}

// GetHistory pages the identity's audit trail, newest first
func (u *AccountLinkUsecase) GetHistory(ctx context.Context, discordID string, page, limit int) ([]*entities.AuditLog, utils.PaginationMeta, error) {
	pagination := utils.BoundedPaginationParams(page, limit, DefaultHistoryLimit, MaxHistoryLimit)
	entries, total, err := u.auditRepo.ListByDiscordID(ctx, discordID, pagination)
	if err != nil {
		return nil, utils.PaginationMeta{}, err
	}
	return entries, utils.CalculateMeta(total, pagination.Page, pagination.Limit), nil
}

// asStoreError classifies an unclassified persistence failure as ErrStoreUnavailable
func asStoreError(op string, err error) error {
	if err == nil || errors.Is(err, domainerrors.ErrStoreUnavailable) {
		return err
	}
	return domainerrors.StoreError(op, err)
}
