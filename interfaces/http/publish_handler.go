package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/persistence"
	"social-publisher/usecase"
)

type IPublishHandler interface {
	Enqueue(ctx *gin.Context)
	JobStatus(ctx *gin.Context)
	ListJobs(ctx *gin.Context)
}

type PublishHandler struct {
	publishUsecase usecase.IPublishUsecase
}

func NewPublishHandler(uc usecase.IPublishUsecase) IPublishHandler {
	return &PublishHandler{publishUsecase: uc}
}

// Enqueue validates and queues one publish job. Validation failures come back
// synchronously with the violated rules; accepted jobs return 202 with the id
// to poll.
func (h *PublishHandler) Enqueue(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user_id"})
		return
	}
	platform, ok := parsePlatform(ctx)
	if !ok {
		return
	}
	var req dto.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.publishUsecase.Enqueue(ctx.Request.Context(), userID, platform, &req)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			ctx.JSON(http.StatusUnprocessableEntity, resp)
			return
		}
		logger.GetLogger().
			WithField("user_id", userID).
			WithField("platform", platform).
			WithField("error", err.Error()).
			Warn("enqueue failed")
		ctx.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusAccepted, resp)
}

func (h *PublishHandler) JobStatus(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	jobID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	job, err := h.publishUsecase.Status(ctx.Request.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, persistence.ErrJobNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, job)
}

func (h *PublishHandler) ListJobs(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	limit := 50
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	jobs, err := h.publishUsecase.ListJobs(ctx.Request.Context(), userID, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []*model.PublishJob{}
	}
	ctx.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
