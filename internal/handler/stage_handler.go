package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/internal/registry"
)

// StageRegistry is what the handler needs from the stage registry.
type StageRegistry interface {
	Snapshot(ctx context.Context) (*registry.Snapshot, error)
	Upsert(ctx context.Context, s *model.Stage) (string, error)
}

type StageHandler struct {
	registry StageRegistry
	logger   *zap.Logger
}

func NewStageHandler(reg StageRegistry, logger *zap.Logger) *StageHandler {
	return &StageHandler{registry: reg, logger: logger}
}

// List handles GET /stages.
func (h *StageHandler) List(c *gin.Context) {
	snap, err := h.registry.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": snap.Stages()})
}

type upsertStageRequest struct {
	Code                string   `json:"code"`
	Name                string   `json:"name"`
	Order               int      `json:"order"`
	Materials           []string `json:"materials"`
	AllowsBackwardEntry bool     `json:"allows_backward_entry"`
	Active              *bool    `json:"active"`
}

// Upsert handles POST /stages (administrator capability, enforced by the
// router). A colliding pipeline order is accepted but flagged in the
// response so admin tooling can warn.
func (h *StageHandler) Upsert(c *gin.Context) {
	var req upsertStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	stage := &model.Stage{
		Code:                req.Code,
		Name:                req.Name,
		Order:               req.Order,
		Materials:           req.Materials,
		AllowsBackwardEntry: req.AllowsBackwardEntry,
		Active:              active,
	}

	warning, err := h.registry.Upsert(c.Request.Context(), stage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{"stage": stage}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}
