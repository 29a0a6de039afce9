package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/internal/registry"
	"labflow/pkg/apperr"
)

// JobStore is the persistence the job service needs. Insert owns the
// job.created outbox event, since only the store knows the assigned id.
type JobStore interface {
	Insert(ctx context.Context, j *model.Job) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Job, error)
	List(ctx context.Context, f model.JobFilter) ([]model.Job, error)
	UpdateFields(ctx context.Context, id int64, u model.JobUpdate) (*model.Job, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// OrderChecker validates order references with the external order service.
type OrderChecker interface {
	Check(ctx context.Context, orderID int64) error
}

// Snapshotter supplies the pipeline view used to place new jobs.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*registry.Snapshot, error)
}

type JobService struct {
	jobs   JobStore
	orders OrderChecker
	stages Snapshotter
	logger *zap.Logger
}

func NewJobService(jobs JobStore, orders OrderChecker, stages Snapshotter, logger *zap.Logger) *JobService {
	return &JobService{jobs: jobs, orders: orders, stages: stages, logger: logger}
}

// CreateJobInput is what an accepted order contributes to a new job.
type CreateJobInput struct {
	OrderID     int64             `json:"order_id"`
	WorkType    string            `json:"work_type"`
	Material    string            `json:"material"`
	OperatorID  *int64            `json:"operator_id"`
	Lot         string            `json:"lot"`
	Priority    int               `json:"priority"`
	EstDelivery *time.Time        `json:"estimated_delivery"`
	Attributes  map[string]string `json:"attributes"`
}

// Create starts a job at the first stage applicable to its material.
func (s *JobService) Create(ctx context.Context, in CreateJobInput) (*model.Job, error) {
	if in.OrderID <= 0 {
		return nil, apperr.Validation("order_id", "must be a positive order reference")
	}
	if in.WorkType == "" {
		return nil, apperr.Validation("work_type", "must not be empty")
	}
	if in.Material == "" {
		return nil, apperr.Validation("material", "must not be empty")
	}

	if err := s.orders.Check(ctx, in.OrderID); err != nil {
		return nil, err
	}

	snap, err := s.stages.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	first, ok := snap.FirstApplicable(in.Material)
	if !ok {
		return nil, apperr.Validation("material",
			"no active stage is applicable to material "+strconv.Quote(in.Material))
	}

	job := &model.Job{
		OrderID:      in.OrderID,
		WorkType:     in.WorkType,
		Material:     registry.NormalizeMaterial(in.Material),
		StageCode:    first.Code,
		OperatorID:   in.OperatorID,
		Lot:          in.Lot,
		DesignFiles:  []string{},
		MillingFiles: []string{},
		Priority:     in.Priority,
		EstDelivery:  in.EstDelivery,
		Attributes:   in.Attributes,
		Active:       true,
	}

	if _, err := s.jobs.Insert(ctx, job); err != nil {
		return nil, apperr.Dependency("job store", err)
	}

	s.logger.Info("Job created",
		zap.Int64("job_id", job.ID),
		zap.Int64("order_id", job.OrderID),
		zap.String("material", job.Material),
		zap.String("stage_code", job.StageCode),
	)
	return job, nil
}

// Get returns one job, active or not (audit views need retired jobs).
func (s *JobService) Get(ctx context.Context, id int64) (*model.Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job", strconv.FormatInt(id, 10))
		}
		return nil, apperr.Dependency("job store", err)
	}
	return job, nil
}

// List returns active jobs matching the filter, newest first.
func (s *JobService) List(ctx context.Context, f model.JobFilter) ([]model.Job, error) {
	// materials are stored normalized; match the filter the same way
	if f.Material != "" {
		f.Material = registry.NormalizeMaterial(f.Material)
	}
	jobs, err := s.jobs.List(ctx, f)
	if err != nil {
		return nil, apperr.Dependency("job store", err)
	}
	return jobs, nil
}

// Update applies a partial update of non-stage fields. Stage changes go
// through the pipeline engine exclusively.
func (s *JobService) Update(ctx context.Context, id int64, u model.JobUpdate) (*model.Job, error) {
	job, err := s.jobs.UpdateFields(ctx, id, u)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job", strconv.FormatInt(id, 10))
		}
		return nil, apperr.Dependency("job store", err)
	}
	return job, nil
}

// Deactivate retires a job while keeping its history.
func (s *JobService) Deactivate(ctx context.Context, id int64) error {
	ok, err := s.jobs.Deactivate(ctx, id)
	if err != nil {
		return apperr.Dependency("job store", err)
	}
	if !ok {
		return apperr.NotFound("job", strconv.FormatInt(id, 10))
	}
	return nil
}
