package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"labflow/internal/event"
	"labflow/internal/model"
	"labflow/pkg/metrics"
	"labflow/pkg/mq"
	"labflow/pkg/outbox"
)

const jobColumns = `id, order_id, work_type, material, stage_code, operator_id, lot,
       design_files, milling_files, priority, estimated_delivery, actual_delivery,
       attributes, active, created_at, updated_at`

type JobRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewJobRepository(db *pgxpool.Pool, ob *outbox.Repository, logger *zap.Logger) *JobRepository {
	return &JobRepository{db: db, outbox: ob, logger: logger}
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(
		&j.ID,
		&j.OrderID,
		&j.WorkType,
		&j.Material,
		&j.StageCode,
		&j.OperatorID,
		&j.Lot,
		&j.DesignFiles,
		&j.MillingFiles,
		&j.Priority,
		&j.EstDelivery,
		&j.Delivery,
		&j.Attributes,
		&j.Active,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// jobCreatedEvent builds the job.created outbox event for a freshly
// inserted job. Runs after the insert so the payload carries the
// assigned id and timestamp.
func jobCreatedEvent(j *model.Job) (*outbox.Event, error) {
	payload, err := json.Marshal(event.JobCreatedPayload{
		JobID:     j.ID,
		OrderID:   j.OrderID,
		WorkType:  j.WorkType,
		Material:  j.Material,
		StageCode: j.StageCode,
		CreatedAt: j.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job event: %w", err)
	}
	return &outbox.Event{
		AggregateType: "job",
		AggregateID:   &j.ID,
		RoutingKey:    mq.RoutingKeyJobCreated,
		Payload:       payload,
		Status:        outbox.StatusPending,
	}, nil
}

// Insert persists a new job together with its job.created outbox event.
func (r *JobRepository) Insert(ctx context.Context, j *model.Job) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("insert", "jobs", time.Since(start))
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO jobs (order_id, work_type, material, stage_code, operator_id, lot,
                          design_files, milling_files, priority, estimated_delivery,
                          actual_delivery, attributes, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
        RETURNING id, created_at, updated_at
    `
	err = tx.QueryRow(ctx, query,
		j.OrderID,
		j.WorkType,
		j.Material,
		j.StageCode,
		j.OperatorID,
		j.Lot,
		j.DesignFiles,
		j.MillingFiles,
		j.Priority,
		j.EstDelivery,
		j.Delivery,
		j.Attributes,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert job",
			zap.Error(err),
			zap.Int64("order_id", j.OrderID),
		)
		return 0, err
	}

	evt, err := jobCreatedEvent(j)
	if err != nil {
		return 0, err
	}
	if err := r.outbox.InsertEvent(ctx, tx, evt); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit job insert: %w", err)
	}

	r.logger.Info("Job inserted",
		zap.Int64("job_id", j.ID),
		zap.Int64("order_id", j.OrderID),
		zap.String("stage_code", j.StageCode),
	)
	return j.ID, nil
}

// GetByID returns a job by id, active or not. pgx.ErrNoRows passes through
// for the service layer to translate.
func (r *JobRepository) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("get", "jobs", time.Since(start))
	}()

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.db.QueryRow(ctx, query, id))
}

// List returns active jobs matching the filter, most recently created first.
func (r *JobRepository) List(ctx context.Context, f model.JobFilter) ([]model.Job, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("list", "jobs", time.Since(start))
	}()

	conditions := []string{"active = TRUE"}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, column+" = $"+strconv.Itoa(len(args)))
	}

	if f.StageCode != "" {
		add("stage_code", f.StageCode)
	}
	if f.OrderID != 0 {
		add("order_id", f.OrderID)
	}
	if f.Material != "" {
		add("material", f.Material)
	}
	if f.WorkType != "" {
		add("work_type", f.WorkType)
	}
	if f.OperatorID != 0 {
		add("operator_id", f.OperatorID)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query jobs", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			r.logger.Error("Failed to scan job row", zap.Error(err))
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// UpdateFields applies a partial non-stage update and returns the fresh row.
func (r *JobRepository) UpdateFields(ctx context.Context, id int64, u model.JobUpdate) (*model.Job, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("update", "jobs", time.Since(start))
	}()

	sets := []string{"updated_at = NOW()"}
	args := []any{}

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if u.OperatorID != nil {
		set("operator_id", *u.OperatorID)
	}
	if u.Lot != nil {
		set("lot", *u.Lot)
	}
	if u.DesignFiles != nil {
		set("design_files", *u.DesignFiles)
	}
	if u.MillingFiles != nil {
		set("milling_files", *u.MillingFiles)
	}
	if u.Priority != nil {
		set("priority", *u.Priority)
	}
	if u.EstDelivery != nil {
		set("estimated_delivery", *u.EstDelivery)
	}
	if u.Delivery != nil {
		set("actual_delivery", *u.Delivery)
	}
	if u.Attributes != nil {
		set("attributes", *u.Attributes)
	}

	args = append(args, id)
	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args)) + ` AND active = TRUE RETURNING ` + jobColumns

	j, err := scanJob(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	r.logger.Info("Job fields updated", zap.Int64("job_id", id))
	return j, nil
}

// ChangeStage applies a stage transition with compare-and-set semantics:
// the write lands only if the job's stage still equals fromStage. The
// stage_changed outbox event commits in the same transaction. Returns
// the row's new updated_at, or false when the guard did not match
// (concurrent writer won).
func (r *JobRepository) ChangeStage(ctx context.Context, jobID int64, fromStage, toStage string, payload any) (time.Time, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("change_stage", "jobs", time.Since(start))
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
        UPDATE jobs
        SET stage_code = $1, updated_at = NOW()
        WHERE id = $2 AND stage_code = $3 AND active = TRUE
        RETURNING updated_at
    `, toStage, jobID, fromStage).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// observed stage is stale; caller re-validates
		return time.Time{}, false, nil
	}
	if err != nil {
		r.logger.Error("Failed to update job stage",
			zap.Error(err),
			zap.Int64("job_id", jobID),
		)
		return time.Time{}, false, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to marshal stage event: %w", err)
	}
	evt := &outbox.Event{
		AggregateType: "job",
		AggregateID:   &jobID,
		RoutingKey:    "job.stage_changed",
		Payload:       body,
		Status:        outbox.StatusPending,
	}
	if err := r.outbox.InsertEvent(ctx, tx, evt); err != nil {
		return time.Time{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to commit stage change: %w", err)
	}

	r.logger.Info("Job stage changed",
		zap.Int64("job_id", jobID),
		zap.String("from", fromStage),
		zap.String("to", toStage),
	)
	return updatedAt, true, nil
}

// Deactivate soft-deletes a job, preserving its audit history.
func (r *JobRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("deactivate", "jobs", time.Since(start))
	}()

	result, err := r.db.Exec(ctx, `
        UPDATE jobs SET active = FALSE, updated_at = NOW()
        WHERE id = $1 AND active = TRUE
    `, id)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	r.logger.Info("Job deactivated", zap.Int64("job_id", id))
	return true, nil
}

// CountActiveByStage reports how many active jobs still sit in a stage.
// Used to refuse deactivating a stage that is still referenced.
func (r *JobRepository) CountActiveByStage(ctx context.Context, stageCode string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM jobs WHERE stage_code = $1 AND active = TRUE
    `, stageCode).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
