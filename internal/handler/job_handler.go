package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/internal/service"
	"labflow/pkg/apperr"
	"labflow/pkg/rbac"
)

// JobManager is what the handler needs from the job service.
type JobManager interface {
	Create(ctx context.Context, in service.CreateJobInput) (*model.Job, error)
	Get(ctx context.Context, id int64) (*model.Job, error)
	List(ctx context.Context, f model.JobFilter) ([]model.Job, error)
	Update(ctx context.Context, id int64, u model.JobUpdate) (*model.Job, error)
	Deactivate(ctx context.Context, id int64) error
}

// TransitionEngine is what the handler needs from the pipeline engine.
type TransitionEngine interface {
	Transition(ctx context.Context, jobID int64, targetCode string, actor model.Actor) (*model.Job, error)
	NextApplicableStage(ctx context.Context, jobID int64) (*model.Stage, error)
}

type JobHandler struct {
	jobs   JobManager
	engine TransitionEngine
	logger *zap.Logger
}

func NewJobHandler(jobs JobManager, engine TransitionEngine, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, engine: engine, logger: logger}
}

func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return id, true
}

// List handles GET /jobs with optional filters.
func (h *JobHandler) List(c *gin.Context) {
	var f model.JobFilter
	f.StageCode = c.Query("stageCode")
	f.Material = c.Query("material")
	f.WorkType = c.Query("workType")
	if v := c.Query("orderId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid orderId"})
			return
		}
		f.OrderID = id
	}
	if v := c.Query("operatorId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid operatorId"})
			return
		}
		f.OperatorID = id
	}

	jobs, err := h.jobs.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Create handles POST /jobs.
func (h *JobHandler) Create(c *gin.Context) {
	var in service.CreateJobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": job})
}

// Get handles GET /jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

type patchJobRequest struct {
	StageCode    *string            `json:"stage_code"`
	OperatorID   *int64             `json:"operator_id"`
	Lot          *string            `json:"lot"`
	DesignFiles  *[]string          `json:"design_files"`
	MillingFiles *[]string          `json:"milling_files"`
	Priority     *int               `json:"priority"`
	EstDelivery  *time.Time         `json:"estimated_delivery"`
	Delivery     *time.Time         `json:"actual_delivery"`
	Attributes   *map[string]string `json:"attributes"`
}

func (r *patchJobRequest) hasFieldUpdate() bool {
	return r.OperatorID != nil || r.Lot != nil || r.DesignFiles != nil ||
		r.MillingFiles != nil || r.Priority != nil || r.EstDelivery != nil ||
		r.Delivery != nil || r.Attributes != nil
}

// Patch handles PATCH /jobs/:id. A body carrying stage_code is a stage
// transition and goes through the engine; anything else is a plain field
// update. Mixing both in one request is rejected so a failed transition
// can never half-apply.
func (h *JobHandler) Patch(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req patchJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if req.StageCode != nil {
		if req.hasFieldUpdate() {
			respondError(c, h.logger, apperr.Validation("stage_code",
				"stage changes must be requested on their own"))
			return
		}
		job, err := h.engine.Transition(c.Request.Context(), id, *req.StageCode, actor)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"job": job})
		return
	}

	if !req.hasFieldUpdate() {
		respondError(c, h.logger, apperr.Validation("", "empty update"))
		return
	}
	if err := rbac.CheckCapability(actor.Role, rbac.CapabilityUpdateJob); err != nil {
		respondError(c, h.logger, apperr.Forbidden(err.Error()))
		return
	}

	job, err := h.jobs.Update(c.Request.Context(), id, model.JobUpdate{
		OperatorID:   req.OperatorID,
		Lot:          req.Lot,
		DesignFiles:  req.DesignFiles,
		MillingFiles: req.MillingFiles,
		Priority:     req.Priority,
		EstDelivery:  req.EstDelivery,
		Delivery:     req.Delivery,
		Attributes:   req.Attributes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Delete handles DELETE /jobs/:id (soft-deactivation).
func (h *JobHandler) Delete(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.jobs.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// NextStage handles GET /jobs/:id/next-stage: the suggested (not
// enforced) forward target for the job's material.
func (h *JobHandler) NextStage(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	next, err := h.engine.NextApplicableStage(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if next == nil {
		c.JSON(http.StatusOK, gin.H{"next_stage": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_stage": next})
}
