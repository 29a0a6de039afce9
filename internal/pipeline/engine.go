// Package pipeline is the stage-transition state machine. It decides
// whether a requested stage change is legal (ordering, backward-entry
// authorization) and applies it through a compare-and-set write, so a
// move validated against a stale stage can never land.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"labflow/internal/event"
	"labflow/internal/model"
	"labflow/internal/registry"
	"labflow/pkg/apperr"
	"labflow/pkg/metrics"
	"labflow/pkg/rbac"
)

// Snapshotter supplies the pipeline view a transition is validated against.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*registry.Snapshot, error)
}

// JobStore is the persistence the engine needs. ChangeStage must only
// apply the write when the job's stage still equals fromStage, report
// false otherwise, and return the persisted updated_at on success.
type JobStore interface {
	GetByID(ctx context.Context, id int64) (*model.Job, error)
	ChangeStage(ctx context.Context, jobID int64, fromStage, toStage string, payload any) (time.Time, bool, error)
}

type Engine struct {
	stages Snapshotter
	jobs   JobStore
	logger *zap.Logger
}

func NewEngine(stages Snapshotter, jobs JobStore, logger *zap.Logger) *Engine {
	return &Engine{stages: stages, jobs: jobs, logger: logger}
}

// Transition moves a job to targetCode on behalf of actor.
//
// Forward moves always succeed, even when the target stage's material set
// excludes the job's material: operators override the suggested path
// deliberately, and the suggestion lives in NextApplicableStage instead.
// Backward moves require both the target stage to allow backward entry
// and the actor to hold the backward-move capability. Same-stage requests
// are idempotent no-ops.
func (e *Engine) Transition(ctx context.Context, jobID int64, targetCode string, actor model.Actor) (*model.Job, error) {
	snap, err := e.stages.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	job, err := e.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	target, ok := snap.ByCode(targetCode)
	if !ok {
		metrics.IncrementStageTransition("unknown", "not_found")
		return nil, apperr.NotFound("stage", targetCode)
	}
	current, ok := snap.ByCode(job.StageCode)
	if !ok {
		// the job's stage was deactivated under it; treat as missing
		metrics.IncrementStageTransition("unknown", "not_found")
		return nil, apperr.NotFound("stage", job.StageCode)
	}

	switch {
	case target.Order == current.Order:
		metrics.IncrementStageTransition("noop", "ok")
		return job, nil

	case target.Order < current.Order:
		if !target.AllowsBackwardEntry {
			metrics.IncrementStageTransition("backward", "forbidden")
			return nil, apperr.Forbidden(
				fmt.Sprintf("stage %q does not allow backward entry", target.Code))
		}
		if err := rbac.CheckCapability(actor.Role, rbac.CapabilityMoveBackward); err != nil {
			metrics.IncrementStageTransition("backward", "forbidden")
			return nil, apperr.Forbidden(err.Error())
		}
	}

	direction := "forward"
	if target.Order < current.Order {
		direction = "backward"
	}

	payload := event.StageChangedPayload{
		JobID:      job.ID,
		FromStage:  current.Code,
		ToStage:    target.Code,
		Direction:  direction,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		OccurredAt: time.Now().UTC(),
	}

	updatedAt, applied, err := e.jobs.ChangeStage(ctx, job.ID, current.Code, target.Code, payload)
	if err != nil {
		return nil, apperr.Dependency("job store", err)
	}
	if !applied {
		metrics.IncrementStageTransition(direction, "conflict")
		return nil, apperr.Conflict(
			fmt.Sprintf("job %d moved concurrently; re-read and retry", job.ID))
	}

	metrics.IncrementStageTransition(direction, "ok")
	e.logger.Info("Stage transition applied",
		zap.Int64("job_id", job.ID),
		zap.String("from", current.Code),
		zap.String("to", target.Code),
		zap.String("direction", direction),
		zap.Int64("actor_id", actor.ID),
	)

	job.StageCode = target.Code
	job.UpdatedAt = updatedAt
	return job, nil
}

// NextApplicableStage suggests the next stage for a job: the first stage
// strictly after the current one whose material set is empty or includes
// the job's material. Returns nil when the job is at the end of its
// applicable subsequence.
func (e *Engine) NextApplicableStage(ctx context.Context, jobID int64) (*model.Stage, error) {
	snap, err := e.stages.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	job, err := e.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	current, ok := snap.ByCode(job.StageCode)
	if !ok {
		return nil, apperr.NotFound("stage", job.StageCode)
	}

	next, ok := snap.NextApplicable(current.Order, job.Material)
	if !ok {
		return nil, nil
	}
	return &next, nil
}

func (e *Engine) loadJob(ctx context.Context, jobID int64) (*model.Job, error) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job", strconv.FormatInt(jobID, 10))
		}
		return nil, apperr.Dependency("job store", err)
	}
	if !job.Active {
		return nil, apperr.NotFound("job", strconv.FormatInt(jobID, 10))
	}
	return job, nil
}
