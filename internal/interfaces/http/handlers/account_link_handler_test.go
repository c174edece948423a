package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/pkg/utils"
)

type linkServiceStub struct {
	requestCode func(ctx context.Context, input *entities.RequestLinkCodeInput) (*entities.LinkCodeResponse, error)
	unlink      func(ctx context.Context, discordID string) error
	getAccount  func(ctx context.Context, discordID string) (*entities.AccountView, error)
	getHistory  func(ctx context.Context, discordID string, page, limit int) ([]*entities.AuditLog, utils.PaginationMeta, error)
}

func (s *linkServiceStub) RequestCode(ctx context.Context, input *entities.RequestLinkCodeInput) (*entities.LinkCodeResponse, error) {
	return s.requestCode(ctx, input)
}

func (s *linkServiceStub) Unlink(ctx context.Context, discordID string) error {
	return s.unlink(ctx, discordID)
}

func (s *linkServiceStub) GetAccount(ctx context.Context, discordID string) (*entities.AccountView, error) {
	return s.getAccount(ctx, discordID)
}

func (s *linkServiceStub) GetHistory(ctx context.Context, discordID string, page, limit int) ([]*entities.AuditLog, utils.PaginationMeta, error) {
	return s.getHistory(ctx, discordID, page, limit)
}

func newLinkRouter(stub *linkServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &AccountLinkHandler{linkUsecase: stub}
	r := gin.New()
	r.POST("/identities/:discordId/link-codes", h.RequestLinkCode)
	r.DELETE("/identities/:discordId/link", h.Unlink)
	r.GET("/identities/:discordId", h.GetAccount)
	r.GET("/identities/:discordId/history", h.GetHistory)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAccountLinkHandler_RequestLinkCode(t *testing.T) {
	expires := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	var got *entities.RequestLinkCodeInput
	r := newLinkRouter(&linkServiceStub{
		requestCode: func(_ context.Context, input *entities.RequestLinkCodeInput) (*entities.LinkCodeResponse, error) {
			got = input
			return &entities.LinkCodeResponse{Code: "ABC-DEF", ExpiresAt: expires, ExpiresInSecs: 300}, nil
		},
	})

	w := doJSON(r, http.MethodPost, "/identities/D1/link-codes", gin.H{"discordUsername": "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "D1", got.DiscordID)
	assert.Equal(t, "alice", got.DiscordUsername)
	assert.False(t, got.Confirm)

	var body entities.LinkCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ABC-DEF", body.Code)
	assert.Equal(t, int64(300), body.ExpiresInSecs)
}

func TestAccountLinkHandler_RequestLinkCode_Validation(t *testing.T) {
	r := newLinkRouter(&linkServiceStub{
		requestCode: func(context.Context, *entities.RequestLinkCodeInput) (*entities.LinkCodeResponse, error) {
			t.Fatal("usecase must not be called")
			return nil, nil
		},
	})

	w := doJSON(r, http.MethodPost, "/identities/D1/link-codes", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/identities/%20/link-codes", gin.H{"discordUsername": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountLinkHandler_RequestLinkCode_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:   "confirmation required",
			err:    &domainerrors.ConfirmationRequiredError{MinecraftUsername: "Steve"},
			status: http.StatusConflict,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Contains(t, w.Body.String(), `"minecraftUsername":"Steve"`)
				assert.Contains(t, w.Body.String(), "ERR_CONFIRMATION_REQUIRED")
			},
		},
		{
			name:   "rate limited",
			err:    &domainerrors.RateLimitError{RetryAfter: 20 * time.Second},
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "20", w.Header().Get("Retry-After"))
			},
		},
		{
			name:   "store unavailable",
			err:    domainerrors.StoreError("issue link code", errors.New("down")),
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newLinkRouter(&linkServiceStub{
				requestCode: func(context.Context, *entities.RequestLinkCodeInput) (*entities.LinkCodeResponse, error) {
					return nil, tc.err
				},
			})
			w := doJSON(r, http.MethodPost, "/identities/D1/link-codes", gin.H{"discordUsername": "alice", "confirm": false})
			assert.Equal(t, tc.status, w.Code)
			if tc.check != nil {
				tc.check(t, w)
			}
		})
	}
}

func TestAccountLinkHandler_Unlink(t *testing.T) {
	calls := 0
	r := newLinkRouter(&linkServiceStub{
		unlink: func(_ context.Context, discordID string) error {
			calls++
			assert.Equal(t, "D1", discordID)
			return nil
		},
	})

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodDelete, "/identities/D1/link", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodDelete, "/identities/D1/link", nil).Code)
	assert.Equal(t, 2, calls)

	failing := newLinkRouter(&linkServiceStub{
		unlink: func(context.Context, string) error { return domainerrors.StoreError("unlink", errors.New("down")) },
	})
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(failing, http.MethodDelete, "/identities/D1/link", nil).Code)
}

func TestAccountLinkHandler_GetAccount(t *testing.T) {
	r := newLinkRouter(&linkServiceStub{
		getAccount: func(_ context.Context, discordID string) (*entities.AccountView, error) {
			if discordID == "missing" {
				return nil, domainerrors.ErrNotFound
			}
			return &entities.AccountView{
				Identity:    &entities.Identity{DiscordID: discordID, DiscordUsername: "alice"},
				PendingCode: &entities.LinkCode{Code: "ABC-DEF", Status: entities.LinkCodeStatusPending},
			}, nil
		},
	})

	w := doJSON(r, http.MethodGet, "/identities/D1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"discordUsername":"alice"`)
	assert.Contains(t, w.Body.String(), `"code":"ABC-DEF"`)

	w = doJSON(r, http.MethodGet, "/identities/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Identity not found")
}

func TestAccountLinkHandler_GetHistory(t *testing.T) {
	var gotPage, gotLimit int
	r := newLinkRouter(&linkServiceStub{
		getHistory: func(_ context.Context, _ string, page, limit int) ([]*entities.AuditLog, utils.PaginationMeta, error) {
			gotPage, gotLimit = page, limit
			if page > 1 {
				return nil, utils.CalculateMeta(1, page, 10), nil
			}
			return []*entities.AuditLog{
				entities.NewAuditLog("D1", entities.AuditAccountLinked, "linked Steve (G1)", time.Now().UTC()),
			}, utils.CalculateMeta(1, 1, 10), nil
		},
	})

	w := doJSON(r, http.MethodGet, "/identities/D1/history?page=1&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, gotPage)
	assert.Equal(t, 5, gotLimit)
	assert.Contains(t, w.Body.String(), "account_linked")
	assert.Contains(t, w.Body.String(), `"totalCount":1`)

	w = doJSON(r, http.MethodGet, "/identities/D1/history?page=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history":[]`)

	w = doJSON(r, http.MethodGet, "/identities/D1/history?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
