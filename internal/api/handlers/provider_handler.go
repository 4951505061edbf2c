package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/inboxwrap/inboxwrap-backend/internal/api/response"
	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/inboxwrap/inboxwrap-backend/internal/provider"
	"github.com/inboxwrap/inboxwrap-backend/internal/repository"
)

// ProviderHandler handles the mailbox connect flow
type ProviderHandler struct {
	microsoft *provider.Microsoft
	accounts  repository.AccountRepository
	users     repository.UserRepository
	logger    *slog.Logger

	now func() time.Time
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(
	microsoft *provider.Microsoft,
	accounts repository.AccountRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *ProviderHandler {
	return &ProviderHandler{
		microsoft: microsoft,
		accounts:  accounts,
		users:     users,
		logger:    logger,
		now:       time.Now,
	}
}

// ConsentResponse carries the provider consent URL the client must visit.
type ConsentResponse struct {
	ConsentURL string `json:"consent_url"`
}

// Connect handles GET /api/providers/microsoft/connect. The user id rides in
// the OAuth state parameter and comes back on the callback.
func (h *ProviderHandler) Connect(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return response.BadRequest(c, "user_id is required")
	}

	if _, err := h.users.GetByID(c.Request().Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "user not found")
		}
		h.logger.Error("failed to load user for connect", slog.Any("error", err))
		return response.InternalError(c, "failed to load user")
	}

	return response.Success(c, ConsentResponse{
		ConsentURL: h.microsoft.ConsentURL(userID),
	})
}

// Callback handles GET /api/providers/microsoft/callback: exchanges the
// authorization code, reads the identity claims from the id_token and stores
// a new connected account for the user carried in state.
func (h *ProviderHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	code := c.QueryParam("code")
	if code == "" {
		return response.BadRequest(c, "code is required")
	}
	userID := c.QueryParam("state")
	if userID == "" {
		return response.BadRequest(c, "state is required")
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "user not found")
		}
		h.logger.Error("failed to load user for callback", slog.Any("error", err))
		return response.InternalError(c, "failed to load user")
	}

	tokens, err := h.microsoft.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("authorization code exchange failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return response.BadGateway(c, "code exchange failed")
	}

	identity, err := provider.IdentityFromIDToken(tokens.IDToken)
	if err != nil {
		h.logger.Error("failed to read identity from id_token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return response.BadGateway(c, "provider identity unavailable")
	}

	exists, err := h.accounts.ExistsByProviderUserID(ctx, identity.Sub)
	if err != nil {
		h.logger.Error("failed to check for existing account", slog.Any("error", err))
		return response.InternalError(c, "failed to check for existing account")
	}
	if exists {
		return response.Conflict(c, "mailbox is already connected")
	}

	now := h.now().UTC()
	account := &models.ConnectedAccount{
		UserID:               user.ID,
		Provider:             models.ProviderMicrosoft,
		ProviderUserID:       identity.Sub,
		Name:                 identity.Name,
		Email:                identity.Email,
		AccessToken:          tokens.AccessToken,
		RefreshToken:         tokens.RefreshToken,
		AccessTokenExpiryUTC: tokens.ExpiryUTC(now),
	}

	if err := h.accounts.Create(ctx, account); err != nil {
		h.logger.Error("failed to store connected account",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return response.InternalError(c, "failed to store connected account")
	}

	h.logger.Info("mailbox connected",
		slog.String("user_id", user.ID),
		slog.String("account_id", account.ID),
		slog.String("provider", account.Provider))

	return response.Created(c, account)
}

// ListAccounts handles GET /api/providers/accounts
func (h *ProviderHandler) ListAccounts(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return response.BadRequest(c, "user_id is required")
	}

	accounts, err := h.accounts.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("failed to list connected accounts", slog.Any("error", err))
		return response.InternalError(c, "failed to list connected accounts")
	}

	return response.Success(c, accounts)
}
