package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"
	"social-publisher/usecase"
)

type IAuthHandler interface {
	Initiate(ctx *gin.Context)
	Callback(ctx *gin.Context)
	Connections(ctx *gin.Context)
	Refresh(ctx *gin.Context)
	Disconnect(ctx *gin.Context)
}

type AuthHandler struct {
	tokenUsecase usecase.ITokenUsecase
}

func NewAuthHandler(uc usecase.ITokenUsecase) IAuthHandler {
	return &AuthHandler{tokenUsecase: uc}
}

func parsePlatform(ctx *gin.Context) (model.Platform, bool) {
	platform, ok := model.ParsePlatform(ctx.Param("platform"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown platform: " + ctx.Param("platform")})
		return "", false
	}
	return platform, true
}

func statusForError(err error) int {
	var ve *model.ValidationError
	var pe *model.ProviderError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrCredentialNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNoRefreshToken), errors.Is(err, model.ErrRefreshExpired):
		return http.StatusUnauthorized
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Initiate starts the consent flow and returns the provider URL to redirect to.
func (h *AuthHandler) Initiate(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	platform, ok := parsePlatform(ctx)
	if !ok {
		return
	}
	resp, err := h.tokenUsecase.BeginAuth(ctx.Request.Context(), userID, platform)
	if err != nil {
		ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Callback receives the provider redirect. Providers may deliver error /
// error_description instead of a code; those short-circuit without touching
// the token endpoint. The abandoned state expires via its TTL.
func (h *AuthHandler) Callback(ctx *gin.Context) {
	state := ctx.Query("state")
	if providerErr := ctx.Query("error"); providerErr != "" {
		logger.GetLogger().
			WithField("platform", ctx.Param("platform")).
			WithField("error", providerErr).
			WithField("description", ctx.Query("error_description")).
			Warn("oauth callback denied by provider")
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":       providerErr,
			"description": ctx.Query("error_description"),
		})
		return
	}
	code := ctx.Query("code")
	if state == "" || code == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing state or code"})
		return
	}
	cred, err := h.tokenUsecase.CompleteAuth(ctx.Request.Context(), state, code)
	if err != nil {
		ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"platform":     cred.Platform,
		"account_id":   cred.AccountID(),
		"account_name": cred.PlatformAccountName,
		"connected":    true,
	})
}

func (h *AuthHandler) Connections(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	statuses, err := h.tokenUsecase.Connections(ctx.Request.Context(), userID)
	if err != nil {
		ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"connections": statuses})
}

// Refresh forces a token refresh regardless of remaining lifetime.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	platform, ok := parsePlatform(ctx)
	if !ok {
		return
	}
	cred, err := h.tokenUsecase.ForceRefresh(ctx.Request.Context(), userID, platform, ctx.Query("account_id"))
	if err != nil {
		ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"platform":   cred.Platform,
		"expires_at": cred.ExpiresAt,
	})
}

// Disconnect deactivates the connection; ?purge=true also hard-deletes it.
func (h *AuthHandler) Disconnect(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	platform, ok := parsePlatform(ctx)
	if !ok {
		return
	}
	purge := ctx.Query("purge") == "true"
	err := h.tokenUsecase.Disconnect(ctx.Request.Context(), userID, platform, ctx.Query("account_id"), purge)
	if err != nil {
		ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"platform": platform, "disconnected": true, "purged": purge})
}
