package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ABWatch/internal/models"
	"ABWatch/pkg/uuidutil"
)

// ListFailures returns detected failures, optionally filtered by
// resolution status.
func (h *Handlers) ListFailures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	status := models.ResolutionStatus(c.Query("status"))
	if status != "" && !models.ValidResolutionStatus(status) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Unknown resolution status"))
		return
	}

	failures, err := h.failures.List(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error("failed to list failures", "error", err, "status", status)
		c.JSON(http.StatusInternalServerError, ErrorResponse("list_failed", "Failed to list failures"))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("failures_list", gin.H{
		"failures": failures,
		"count":    len(failures),
	}))
}

// GetFailure returns one detected failure by id.
func (h *Handlers) GetFailure(c *gin.Context) {
	failureID := c.Param("id")
	if !uuidutil.IsValid(failureID) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Failure id must be a UUID"))
		return
	}

	failure, err := h.failures.GetByID(c.Request.Context(), failureID)
	if err != nil {
		h.logger.Error("failed to get failure", "error", err, "failure_id", failureID)
		c.JSON(http.StatusInternalServerError, ErrorResponse("get_failed", "Failed to get failure"))
		return
	}

	if failure == nil {
		c.JSON(http.StatusNotFound, ErrorResponse("not_found", "Failure not found"))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("failure_found", gin.H{
		"failure": failure,
	}))
}

// UpdateResolution drives the resolution workflow. Resolver identity
// comes from the X-Resolved-By header; notes from the body.
func (h *Handlers) UpdateResolution(c *gin.Context) {
	failureID := c.Param("id")
	if !uuidutil.IsValid(failureID) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Failure id must be a UUID"))
		return
	}

	var req struct {
		Status string  `json:"status" binding:"required"`
		Notes  *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Status is required"))
		return
	}

	status := models.ResolutionStatus(req.Status)
	if !models.ValidResolutionStatus(status) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Unknown resolution status"))
		return
	}

	var resolvedBy *string
	if resolver := c.GetHeader("X-Resolved-By"); resolver != "" {
		resolvedBy = &resolver
	}

	if status == models.ResolutionResolved && resolvedBy == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "X-Resolved-By header is required to resolve a failure"))
		return
	}

	if err := h.failures.UpdateResolution(c.Request.Context(), failureID, status, resolvedBy, req.Notes); err != nil {
		h.logger.Error("failed to update resolution", "error", err, "failure_id", failureID, "status", status)
		c.JSON(http.StatusInternalServerError, ErrorResponse("update_failed", err.Error()))
		return
	}

	h.logger.Info("failure resolution updated", "failure_id", failureID, "status", status)
	c.JSON(http.StatusOK, SuccessResponse("resolution_updated", gin.H{
		"failure_id": failureID,
		"status":     status,
	}))
}
