package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"labflow/internal/event"
	"labflow/internal/model"
	"labflow/pkg/apperr"
	"labflow/pkg/metrics"
	"labflow/pkg/mq"
)

// CommentStore is the persistence the comment service needs. The store
// is privilege-agnostic; visibility filtering happens at the gateway.
type CommentStore interface {
	Insert(ctx context.Context, c *model.Comment) (int64, error)
	ListByJob(ctx context.Context, jobID int64) ([]model.Comment, error)
}

// EventPublisher pushes comment events to the broker. Comment appends are
// conflict-free single-row inserts, so they publish directly instead of
// going through the outbox.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type CommentService struct {
	comments  CommentStore
	jobs      JobStore
	publisher EventPublisher // optional; nil disables eventing
	logger    *zap.Logger
}

func NewCommentService(comments CommentStore, jobs JobStore, publisher EventPublisher, logger *zap.Logger) *CommentService {
	return &CommentService{comments: comments, jobs: jobs, publisher: publisher, logger: logger}
}

// Append adds a comment to a job's trail. Comments are immutable once
// written.
func (s *CommentService) Append(ctx context.Context, jobID int64, actor model.Actor, message string, attachments []string, internal bool) (*model.Comment, error) {
	if message == "" {
		return nil, apperr.Validation("message", "must not be empty")
	}

	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job", strconv.FormatInt(jobID, 10))
		}
		return nil, apperr.Dependency("job store", err)
	}

	if attachments == nil {
		attachments = []string{}
	}
	c := &model.Comment{
		JobID:       jobID,
		AuthorID:    actor.ID,
		AuthorName:  actor.Name,
		AuthorRole:  actor.Role,
		Message:     message,
		Attachments: attachments,
		Internal:    internal,
	}

	if _, err := s.comments.Insert(ctx, c); err != nil {
		return nil, apperr.Dependency("comment store", err)
	}

	if s.publisher != nil {
		payload := event.CommentCreatedPayload{
			CommentID:  c.ID,
			JobID:      c.JobID,
			AuthorID:   c.AuthorID,
			Internal:   c.Internal,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.publisher.Publish(mq.RoutingKeyCommentCreated, payload); err != nil {
			// eventing is best-effort here; the comment itself is durable
			metrics.IncrementEventPublish(mq.RoutingKeyCommentCreated, "failed")
			s.logger.Error("Failed to publish comment event",
				zap.Error(err),
				zap.Int64("comment_id", c.ID),
			)
		} else {
			metrics.IncrementEventPublish(mq.RoutingKeyCommentCreated, "success")
		}
	}

	return c, nil
}

// List returns a job's full trail ascending by creation time. Callers
// without staff privileges must be given only external comments; that
// filter belongs to the gateway.
func (s *CommentService) List(ctx context.Context, jobID int64) ([]model.Comment, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job", strconv.FormatInt(jobID, 10))
		}
		return nil, apperr.Dependency("job store", err)
	}

	comments, err := s.comments.ListByJob(ctx, jobID)
	if err != nil {
		return nil, apperr.Dependency("comment store", err)
	}
	return comments, nil
}
