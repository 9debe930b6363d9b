// Package tasks implements the cache-aside task store: the per-user task
// collection is served from the volatile cache when present and from the
// primary store otherwise, and every mutation invalidates the cached
// collection by deleting it. The entry is deleted, never updated in place,
// to avoid partially-merged cache state.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
)

// Cache is the slice of the volatile cache client the task store needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo     Repository
	cache    Cache
	logger   logging.Logger
	cacheTTL time.Duration
}

func NewService(repo Repository, cache Cache, logger logging.Logger, cfg *config.Config) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		logger:   logger.With("module", "tasks"),
		cacheTTL: cfg.TaskCacheTTL,
	}
}

func collectionKey(userID int64) string {
	return fmt.Sprintf("user:%d:tasks", userID)
}

// List returns the user's tasks. A valid cache entry is returned without
// touching the store; on a miss or an unreachable cache the store is read
// and the entry repopulated best-effort (a populate failure only gets
// logged, it never fails the read).
func (s *Service) List(ctx context.Context, userID int64) ([]Task, error) {
	key := collectionKey(userID)

	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		var tasks []Task
		if err := json.Unmarshal([]byte(cached), &tasks); err == nil {
			return tasks, nil
		}
		s.logger.Warn(ctx, "discarding undecodable cached task collection", "user_id", userID)
	} else if !errors.Is(err, common.ErrCacheMiss) {
		s.logger.Warn(ctx, "cache read failed, falling back to store", "user_id", userID, "error", err)
	}

	tasks, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error fetching tasks: %w", err)
	}

	if data, err := json.Marshal(tasks); err == nil {
		if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
			s.logger.Warn(ctx, "failed to populate task cache", "user_id", userID, "error", err)
		}
	}

	return tasks, nil
}

// Search returns the user's tasks matching the criteria. With no criteria
// set it degenerates to List (and so uses the cache path); otherwise it
// bypasses the cache entirely and never writes to it, since filtered
// results are not the canonical per-user collection.
func (s *Service) Search(ctx context.Context, userID int64, criteria SearchCriteria) ([]Task, error) {
	if criteria.Empty() {
		return s.List(ctx, userID)
	}

	tasks, err := s.repo.FindByUserIDAndCriteria(ctx, userID, criteria)
	if err != nil {
		return nil, fmt.Errorf("error searching tasks: %w", err)
	}

	return tasks, nil
}

// Get returns a single task scoped by id and owner; the ownership check is
// structural, not a separate authorization step. Individual tasks are never
// served from the collection cache.
func (s *Service) Get(ctx context.Context, taskID int64, userID int64) (*Task, error) {
	return s.repo.FindByIDAndUserID(ctx, taskID, userID)
}

// invalidate deletes the user's cached collection. It runs immediately after
// a committed store mutation; a failure leaves a stale entry alive until its
// TTL elapses, which is loud-logged but does not undo the mutation — the
// store is authoritative.
func (s *Service) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Delete(ctx, collectionKey(userID)); err != nil {
		s.logger.Error(ctx, "task cache invalidation failed, stale entry may persist until TTL",
			"user_id", userID, "error", err)
	}
}

// Create validates the task type, inserts the task and invalidates the
// owner's cached collection. On a uniqueness conflict nothing was written,
// so the cache is left untouched.
func (s *Service) Create(ctx context.Context, task *Task) (*Task, error) {
	if !ValidTaskType(task.TaskType) {
		return nil, common.ErrInvalidTaskType
	}

	created, err := s.repo.Create(ctx, task)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateTask) {
			return nil, common.ErrDuplicateTask
		}
		return nil, fmt.Errorf("error creating task: %w", err)
	}

	s.invalidate(ctx, created.UserID)

	return created, nil
}

// Update validates the task type, applies the change and invalidates the
// owner's cached collection. Conflicts and missing tasks leave the cache
// untouched since no mutation occurred.
func (s *Service) Update(ctx context.Context, task *Task) error {
	if !ValidTaskType(task.TaskType) {
		return common.ErrInvalidTaskType
	}

	if err := s.repo.Update(ctx, task); err != nil {
		if errors.Is(err, common.ErrDuplicateTask) || errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error updating task: %w", err)
	}

	s.invalidate(ctx, task.UserID)

	return nil
}

// Delete removes the task and invalidates the owner's cached collection.
// A delete that affected nothing is still a success, and the cache entry is
// still invalidated: whatever was cached no longer reflects the store.
func (s *Service) Delete(ctx context.Context, taskID int64, userID int64) error {
	if err := s.repo.Delete(ctx, taskID, userID); err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}

	s.invalidate(ctx, userID)

	return nil
}
