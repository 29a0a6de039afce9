package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/pkg/rbac"
)

// CommentManager is what the handler needs from the comment service.
type CommentManager interface {
	Append(ctx context.Context, jobID int64, actor model.Actor, message string, attachments []string, internal bool) (*model.Comment, error)
	List(ctx context.Context, jobID int64) ([]model.Comment, error)
}

type CommentHandler struct {
	comments CommentManager
	logger   *zap.Logger
}

func NewCommentHandler(comments CommentManager, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// List handles GET /jobs/:id/comments. Staff see the full trail;
// everyone else gets only externally visible comments.
func (h *CommentHandler) List(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	comments, err := h.comments.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if !rbac.IsStaff(actor.Role) {
		visible := []model.Comment{}
		for _, comment := range comments {
			if !comment.Internal {
				visible = append(visible, comment)
			}
		}
		comments = visible
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type appendCommentRequest struct {
	Message     string   `json:"message"`
	Attachments []string `json:"attachments"`
	Internal    bool     `json:"internal"`
}

// Append handles POST /jobs/:id/comments.
func (h *CommentHandler) Append(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req appendCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// non-staff callers cannot file staff-only comments
	internal := req.Internal && rbac.IsStaff(actor.Role)

	comment, err := h.comments.Append(c.Request.Context(), id, actor, req.Message, req.Attachments, internal)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}
