package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/internal/interfaces/http/response"
	"nexus.backend/internal/usecases"
	"nexus.backend/pkg/utils"
)

type accountLinkService interface {
	RequestCode(ctx context.Context, input *entities.RequestLinkCodeInput) (*entities.LinkCodeResponse, error)
	Unlink(ctx context.Context, discordID string) error
	GetAccount(ctx context.Context, discordID string) (*entities.AccountView, error)
	GetHistory(ctx context.Context, discordID string, page, limit int) ([]*entities.AuditLog, utils.PaginationMeta, error)
}

// AccountLinkHandler serves the chat bot's account linking commands
type AccountLinkHandler struct {
	linkUsecase accountLinkService
}

// NewAccountLinkHandler creates a new account link handler
func NewAccountLinkHandler(linkUsecase *usecases.AccountLinkUsecase) *AccountLinkHandler {
	return &AccountLinkHandler{linkUsecase: linkUsecase}
}

func discordIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("discordId"))
	if id == "" {
		response.Error(c, domainerrors.BadRequest("Discord ID is required"))
		return "", false
	}
	return id, true
}

// RequestLinkCode issues a verification code. Replacing an existing link
// needs confirm=true; without it the response is 409 naming the linked account.
// POST /api/v1/identities/:discordId/link-codes
func (h *AccountLinkHandler) RequestLinkCode(c *gin.Context) {
	discordID, ok := discordIDParam(c)
	if !ok {
		return
	}

	var input entities.RequestLinkCodeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	input.DiscordID = discordID

	code, err := h.linkUsecase.RequestCode(c.Request.Context(), &input)
	if err != nil {
		var confirm *domainerrors.ConfirmationRequiredError
		if errors.As(err, &confirm) {
			appErr := domainerrors.FromError(err)
			c.JSON(appErr.Status, gin.H{
				"code":              appErr.Code,
				"message":           appErr.Message,
				"minecraftUsername": confirm.MinecraftUsername,
			})
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, code)
}

// Unlink detaches the linked game account; unlinking twice is not an error
// DELETE /api/v1/identities/:discordId/link
func (h *AccountLinkHandler) Unlink(c *gin.Context) {
	discordID, ok := discordIDParam(c)
	if !ok {
		return
	}

	if err := h.linkUsecase.Unlink(c.Request.Context(), discordID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Account unlinked"})
}

// GetAccount shows the link state and any live code
// GET /api/v1/identities/:discordId
func (h *AccountLinkHandler) GetAccount(c *gin.Context) {
	discordID, ok := discordIDParam(c)
	if !ok {
		return
	}

	view, err := h.linkUsecase.GetAccount(c.Request.Context(), discordID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Identity not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetHistory lists audit entries, newest first
// GET /api/v1/identities/:discordId/history?page=&limit=
func (h *AccountLinkHandler) GetHistory(c *gin.Context) {
	discordID, ok := discordIDParam(c)
	if !ok {
		return
	}

	var pagination utils.PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid pagination parameters"))
		return
	}

	entries, meta, err := h.linkUsecase.GetHistory(c.Request.Context(), discordID, pagination.Page, pagination.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []*entities.AuditLog{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"history":    entries,
		"pagination": meta,
	})
}
