// Package registry owns the ordered stage list and its material
// compatibility rules. The list is read-mostly reference data: reads go
// through a cached snapshot, administrator edits invalidate the cache.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/pkg/apperr"
	"labflow/pkg/metrics"
)

const (
	cacheKey = "labflow:stages:active"
	cacheTTL = 5 * time.Minute
)

// StageStore is the persistence the registry needs.
type StageStore interface {
	ListActive(ctx context.Context) ([]model.Stage, error)
	Upsert(ctx context.Context, s *model.Stage) error
	CountOrderCollisions(ctx context.Context, code string, order int) (int, error)
}

// JobCounter guards stage deactivation against jobs still in the stage.
type JobCounter interface {
	CountActiveByStage(ctx context.Context, stageCode string) (int, error)
}

type Registry struct {
	stages StageStore
	jobs   JobCounter
	cache  *redis.Client // optional; nil disables caching
	logger *zap.Logger
}

func New(stages StageStore, jobs JobCounter, cache *redis.Client, logger *zap.Logger) *Registry {
	return &Registry{stages: stages, jobs: jobs, cache: cache, logger: logger}
}

// Snapshot loads the active pipeline, preferring the cache. A cache
// failure degrades to a database read.
func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var stages []model.Stage
			if jsonErr := json.Unmarshal(raw, &stages); jsonErr == nil {
				metrics.IncrementStageCache("hit")
				return NewSnapshot(stages), nil
			}
			// corrupt entry; fall through to the database
			metrics.IncrementStageCache("error")
		case errors.Is(err, redis.Nil):
			metrics.IncrementStageCache("miss")
		default:
			metrics.IncrementStageCache("error")
			r.logger.Warn("Stage cache read failed", zap.Error(err))
		}
	}

	stages, err := r.stages.ListActive(ctx)
	if err != nil {
		return nil, apperr.Dependency("stage store", err)
	}

	if r.cache != nil {
		if raw, err := json.Marshal(stages); err == nil {
			if err := r.cache.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
				r.logger.Warn("Stage cache write failed", zap.Error(err))
			}
		}
	}

	return NewSnapshot(stages), nil
}

// Upsert inserts or fully replaces a stage definition. Returns a warning
// string when the assigned order collides with another active stage
// (accepted last-writer-wins, but admin UIs should surface it).
func (r *Registry) Upsert(ctx context.Context, s *model.Stage) (string, error) {
	if s.Code == "" {
		return "", apperr.Validation("code", "must not be empty")
	}
	if s.Name == "" {
		return "", apperr.Validation("name", "must not be empty")
	}

	// a stage still holding active jobs cannot be switched off
	if !s.Active {
		n, err := r.jobs.CountActiveByStage(ctx, s.Code)
		if err != nil {
			return "", apperr.Dependency("job store", err)
		}
		if n > 0 {
			return "", apperr.Validation("active",
				fmt.Sprintf("stage %q still has %d active jobs", s.Code, n))
		}
	}

	collisions, err := r.stages.CountOrderCollisions(ctx, s.Code, s.Order)
	if err != nil {
		return "", apperr.Dependency("stage store", err)
	}

	for i, m := range s.Materials {
		s.Materials[i] = NormalizeMaterial(m)
	}

	if err := r.stages.Upsert(ctx, s); err != nil {
		return "", apperr.Dependency("stage store", err)
	}

	r.invalidate(ctx)

	var warning string
	if collisions > 0 {
		warning = fmt.Sprintf("order %d is already used by %d other active stage(s); pipeline ordering between them is undefined", s.Order, collisions)
		r.logger.Warn("Stage order collision accepted",
			zap.String("code", s.Code),
			zap.Int("order", s.Order),
			zap.Int("collisions", collisions),
		)
	}
	return warning, nil
}

func (r *Registry) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, cacheKey).Err(); err != nil {
		r.logger.Warn("Stage cache invalidation failed", zap.Error(err))
	}
}
