package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ABWatch/internal/models"
	"ABWatch/internal/orchestrator"
	"ABWatch/pkg/uuidutil"
	"ABWatch/pkg/validator"
)

// TriggerRun starts a monitoring run. Returns 409 with the active run
// id when another run is already in flight.
func (h *Handlers) TriggerRun(c *gin.Context) {
	trigger := string(models.TriggerManual)
	var req struct {
		Trigger string `json:"trigger"`
	}
	if err := c.ShouldBindJSON(&req); err == nil && req.Trigger != "" {
		trigger = req.Trigger
	}

	if !validator.ValidateTriggerSource(trigger) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Trigger must be scheduled or manual"))
		return
	}

	run, err := h.orchestrator.StartRunAsync(c.Request.Context(), models.TriggerSource(trigger))
	if err != nil {
		var conflict *orchestrator.RunActiveError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, ErrorResponse("run_active", err.Error()))
			return
		}

		h.logger.Error("failed to start monitoring run", "error", err, "trigger", trigger)
		c.JSON(http.StatusInternalServerError, ErrorResponse("start_failed", err.Error()))
		return
	}

	h.logger.Info("monitoring run triggered", "run_id", run.ID, "trigger", trigger)
	c.JSON(http.StatusCreated, SuccessResponse("run_started", gin.H{
		"run_id":       run.ID,
		"total_checks": run.TotalChecks,
	}))
}

// GetProgress returns the active run's live progress.
func (h *Handlers) GetProgress(c *gin.Context) {
	progress, err := h.orchestrator.LiveProgress(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to get live progress", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse("progress_failed", "Failed to get progress"))
		return
	}

	if progress == nil {
		c.JSON(http.StatusOK, SuccessResponse("no_active_run", gin.H{
			"active": false,
		}))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("progress", gin.H{
		"active":   true,
		"progress": progress,
	}))
}

// CancelRun cancels the active run. Advisory: takes effect at the next
// batch boundary.
func (h *Handlers) CancelRun(c *gin.Context) {
	run, err := h.orchestrator.Cancel(c.Request.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoActiveRun) {
			c.JSON(http.StatusNotFound, ErrorResponse("no_active_run", "No run is currently active"))
			return
		}

		h.logger.Error("failed to cancel run", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse("cancel_failed", "Failed to cancel run"))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("run_cancelled", gin.H{
		"run_id": run.ID,
	}))
}

// ListRuns returns run history, newest first.
func (h *Handlers) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.orchestrator.RunHistory(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err, "limit", limit)
		c.JSON(http.StatusInternalServerError, ErrorResponse("list_failed", "Failed to list runs"))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("runs_list", gin.H{
		"runs":  runs,
		"count": len(runs),
	}))
}

// GetRun returns one run by id.
func (h *Handlers) GetRun(c *gin.Context) {
	runID := c.Param("id")
	if !uuidutil.IsValid(runID) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Run id must be a UUID"))
		return
	}

	run, err := h.orchestrator.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "error", err, "run_id", runID)
		c.JSON(http.StatusInternalServerError, ErrorResponse("get_failed", "Failed to get run"))
		return
	}

	if run == nil {
		c.JSON(http.StatusNotFound, ErrorResponse("not_found", "Run not found"))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("run_found", gin.H{
		"run": run,
	}))
}

// GetRunChecks returns a run's checks denormalized for display.
func (h *Handlers) GetRunChecks(c *gin.Context) {
	runID := c.Param("id")
	if !uuidutil.IsValid(runID) {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Run id must be a UUID"))
		return
	}

	checks, err := h.orchestrator.RunChecks(c.Request.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run checks", "error", err, "run_id", runID)
		c.JSON(http.StatusInternalServerError, ErrorResponse("get_failed", "Failed to get run checks"))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("checks_found", gin.H{
		"run_id": runID,
		"checks": checks,
		"count":  len(checks),
	}))
}
