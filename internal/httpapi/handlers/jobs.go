package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/common"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/router"
)

// CreateRouterJob accepts the same body as /v1/router/chat but runs it
// asynchronously via the worker. An Idempotency-Key header makes retries
// return the original job instead of enqueueing twice.
func (h *Handler) CreateRouterJob(c *gin.Context) {
	if h.Publisher == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "job queue unavailable")
		return
	}

	var req router.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	if len(req.Providers) == 0 {
		common.Fail(c, http.StatusBadRequest, 40002, "providers must not be empty")
		return
	}

	user, err := h.resolveChatUser(c, &req)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, fmt.Sprintf("get_current_user_error: %v", err))
		return
	}

	var idemKey *string
	if k := strings.TrimSpace(c.GetHeader("Idempotency-Key")); k != "" {
		idemKey = &k

		var existing models.RouterJob
		err := h.DB.WithContext(c.Request.Context()).
			First(&existing, "user_id = ? AND idempotency_key = ?", user.ID, k).Error
		if err == nil {
			common.OK(c, existing)
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusInternalServerError, 50030, "job lookup failed")
			return
		}
	}

	payload, err := json.Marshal(&req)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50031, "encoding job payload failed")
		return
	}

	id, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50031, "generating job id failed")
		return
	}

	job := models.RouterJob{
		ID:             id,
		UserID:         user.ID,
		SessionID:      req.SessionID,
		Payload:        string(payload),
		IdempotencyKey: idemKey,
		Status:         models.RouterJobQueued,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&job).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50032, "saving job failed")
		return
	}

	if err := h.Publisher.PublishJob(c.Request.Context(), job.ID); err != nil {
		// The row stays queued; a requeue sweep or manual retry can pick
		// it up. Surface the failure to the caller.
		log.Printf("[jobs] publish failed job=%s: %v", job.ID, err)
		common.Fail(c, http.StatusServiceUnavailable, 50302, "enqueueing job failed")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"code": 0, "message": "ok", "data": job})
}

// GetRouterJob reports job status and, when finished, the final content.
// Jobs are only visible to the user that enqueued them; anyone else gets
// the same 404 a missing id would.
func (h *Handler) GetRouterJob(c *gin.Context) {
	id := c.Param("id")

	user, err := h.resolveChatUser(c, &router.ChatRequest{})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, fmt.Sprintf("get_current_user_error: %v", err))
		return
	}

	var job models.RouterJob
	err = h.DB.WithContext(c.Request.Context()).First(&job, "id = ? AND user_id = ?", id, user.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusNotFound, 40401, "job not found")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50030, "job lookup failed")
		return
	}

	common.OK(c, job)
}
