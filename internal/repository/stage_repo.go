package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/pkg/metrics"
)

type StageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewStageRepository(db *pgxpool.Pool, logger *zap.Logger) *StageRepository {
	return &StageRepository{db: db, logger: logger}
}

// ListActive returns all active stages ascending by pipeline order, with
// their compatible-material sets attached.
func (r *StageRepository) ListActive(ctx context.Context) ([]model.Stage, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("list_active", "stages", time.Since(start))
	}()

	query := `
        SELECT s.code, s.name, s.pipeline_order, s.allows_backward_entry, s.active,
               s.created_at, s.updated_at,
               COALESCE(array_agg(m.material) FILTER (WHERE m.material IS NOT NULL), '{}')
        FROM stages s
        LEFT JOIN stage_materials m ON m.stage_code = s.code
        WHERE s.active = TRUE
        GROUP BY s.code
        ORDER BY s.pipeline_order ASC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query stages", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	stages := []model.Stage{}
	for rows.Next() {
		var s model.Stage
		if err := rows.Scan(
			&s.Code,
			&s.Name,
			&s.Order,
			&s.AllowsBackwardEntry,
			&s.Active,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.Materials,
		); err != nil {
			r.logger.Error("Failed to scan stage row", zap.Error(err))
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// Upsert inserts or fully replaces a stage definition and its material
// set in one transaction.
func (r *StageRepository) Upsert(ctx context.Context, s *model.Stage) error {
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("upsert", "stages", time.Since(start))
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO stages (code, name, pipeline_order, allows_backward_entry, active)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (code) DO UPDATE
        SET name = EXCLUDED.name,
            pipeline_order = EXCLUDED.pipeline_order,
            allows_backward_entry = EXCLUDED.allows_backward_entry,
            active = EXCLUDED.active,
            updated_at = NOW()
        RETURNING created_at, updated_at
    `
	err = tx.QueryRow(ctx, query,
		s.Code,
		s.Name,
		s.Order,
		s.AllowsBackwardEntry,
		s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert stage",
			zap.Error(err),
			zap.String("code", s.Code),
		)
		return err
	}

	// replace the material set wholesale
	if _, err := tx.Exec(ctx, `DELETE FROM stage_materials WHERE stage_code = $1`, s.Code); err != nil {
		return fmt.Errorf("failed to clear stage materials: %w", err)
	}
	for _, material := range s.Materials {
		if _, err := tx.Exec(ctx,
			`INSERT INTO stage_materials (stage_code, material) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			s.Code, material,
		); err != nil {
			return fmt.Errorf("failed to insert stage material: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stage upsert: %w", err)
	}

	r.logger.Info("Stage upserted",
		zap.String("code", s.Code),
		zap.Int("order", s.Order),
		zap.Int("materials", len(s.Materials)),
		zap.Bool("active", s.Active),
	)
	return nil
}

// CountOrderCollisions counts other active stages already holding the
// given pipeline order.
func (r *StageRepository) CountOrderCollisions(ctx context.Context, code string, order int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM stages
        WHERE pipeline_order = $1 AND code <> $2 AND active = TRUE
    `, order, code).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
