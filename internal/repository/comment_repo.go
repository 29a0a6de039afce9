package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/pkg/metrics"
)

type CommentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCommentRepository(db *pgxpool.Pool, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{db: db, logger: logger}
}

// Insert appends a comment. Comments are never updated or deleted.
func (r *CommentRepository) Insert(ctx context.Context, c *model.Comment) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("insert", "comments", time.Since(start))
	}()

	query := `
        INSERT INTO comments (job_id, author_id, author_name, author_role,
                              message, attachments, internal)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		c.JobID,
		c.AuthorID,
		c.AuthorName,
		c.AuthorRole,
		c.Message,
		c.Attachments,
		c.Internal,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert comment",
			zap.Error(err),
			zap.Int64("job_id", c.JobID),
		)
		return 0, err
	}

	r.logger.Info("Comment appended",
		zap.Int64("comment_id", c.ID),
		zap.Int64("job_id", c.JobID),
		zap.Bool("internal", c.Internal),
	)
	return c.ID, nil
}

// ListByJob returns a job's comments ascending by creation time.
func (r *CommentRepository) ListByJob(ctx context.Context, jobID int64) ([]model.Comment, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("list", "comments", time.Since(start))
	}()

	query := `
        SELECT id, job_id, author_id, author_name, author_role,
               message, attachments, internal, created_at
        FROM comments
        WHERE job_id = $1
        ORDER BY created_at ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		r.logger.Error("Failed to query comments",
			zap.Error(err),
			zap.Int64("job_id", jobID),
		)
		return nil, err
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.ID,
			&c.JobID,
			&c.AuthorID,
			&c.AuthorName,
			&c.AuthorRole,
			&c.Message,
			&c.Attachments,
			&c.Internal,
			&c.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan comment row", zap.Error(err))
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
