package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeRepo struct {
	tasks []Task

	findCalls     int
	criteriaCalls int
	lastCriteria  SearchCriteria

	createErr error
	updateErr error
	deleteErr error
}

func (f *fakeRepo) FindByUserID(ctx context.Context, userID int64) ([]Task, error) {
	f.findCalls++
	out := []Task{}
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindByUserIDAndCriteria(ctx context.Context, userID int64, criteria SearchCriteria) ([]Task, error) {
	f.criteriaCalls++
	f.lastCriteria = criteria
	out := []Task{}
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		if criteria.TaskType != "" && t.TaskType != criteria.TaskType {
			continue
		}
		if criteria.Title != "" && !contains(t.Title, criteria.Title) {
			continue
		}
		if criteria.Description != "" && !contains(t.Description, criteria.Description) {
			continue
		}
		if criteria.DateFrom != nil && t.UpdatedAt.Before(*criteria.DateFrom) {
			continue
		}
		if criteria.DateTo != nil && t.UpdatedAt.After(*criteria.DateTo) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// case-sensitive substring, mirroring the store predicate
func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func (f *fakeRepo) FindByIDAndUserID(ctx context.Context, taskID int64, userID int64) (*Task, error) {
	for _, t := range f.tasks {
		if t.ID == taskID && t.UserID == userID {
			return &t, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRepo) Create(ctx context.Context, task *Task) (*Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	task.ID = int64(len(f.tasks) + 1)
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks = append(f.tasks, *task)
	return task, nil
}

func (f *fakeRepo) Update(ctx context.Context, task *Task) error {
	return f.updateErr
}

func (f *fakeRepo) Delete(ctx context.Context, taskID int64, userID int64) error {
	return f.deleteErr
}

type fakeCache struct {
	entries     map[string]string
	unavailable bool

	gets, sets, deletes int
	setErr              error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	f.gets++
	if f.unavailable {
		return "", common.ErrCacheUnavailable
	}
	v, ok := f.entries[key]
	if !ok {
		return "", common.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.sets++
	if f.unavailable {
		return common.ErrCacheUnavailable
	}
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.deletes++
	if f.unavailable {
		return common.ErrCacheUnavailable
	}
	delete(f.entries, key)
	return nil
}

func newTestService(repo Repository, cache Cache) *Service {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	cfg := &config.Config{TaskCacheTTL: time.Hour}
	return NewService(repo, cache, logger, cfg)
}

func cacheEntry(t *testing.T, tasks []Task) string {
	t.Helper()
	data, err := json.Marshal(tasks)
	require.NoError(t, err)
	return string(data)
}

// --- List ---

func TestList_CacheHitSkipsStore(t *testing.T) {
	repo := &fakeRepo{}
	fc := newFakeCache()
	cached := []Task{{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"}}
	fc.entries[collectionKey(7)] = cacheEntry(t, cached)

	s := newTestService(repo, fc)

	got, err := s.List(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.Zero(t, repo.findCalls, "cache hit must not touch the store")
}

func TestList_CacheMissReadsStoreAndPopulates(t *testing.T) {
	repo := &fakeRepo{tasks: []Task{{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"}}}
	fc := newFakeCache()
	s := newTestService(repo, fc)

	got, err := s.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, repo.findCalls)
	assert.Contains(t, fc.entries, collectionKey(7), "miss must repopulate the cache")
}

func TestList_CacheUnavailableFallsBackWithoutError(t *testing.T) {
	repo := &fakeRepo{tasks: []Task{{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"}}}
	fc := newFakeCache()
	fc.unavailable = true
	s := newTestService(repo, fc)

	got, err := s.List(context.Background(), 7)
	require.NoError(t, err, "a cache outage must not surface to the caller")
	assert.Len(t, got, 1)
	assert.Equal(t, 1, repo.findCalls)
}

func TestList_PopulateFailureDoesNotFailRead(t *testing.T) {
	repo := &fakeRepo{tasks: []Task{{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"}}}
	fc := newFakeCache()
	fc.setErr = common.ErrCacheUnavailable
	s := newTestService(repo, fc)

	got, err := s.List(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestList_DiscardsCorruptCacheEntry(t *testing.T) {
	repo := &fakeRepo{tasks: []Task{{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"}}}
	fc := newFakeCache()
	fc.entries[collectionKey(7)] = "{not json"
	s := newTestService(repo, fc)

	got, err := s.List(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, repo.findCalls, "corrupt entry must fall through to the store")
}

// --- Search ---

func TestSearch_EmptyCriteriaEqualsList(t *testing.T) {
	repo := &fakeRepo{tasks: []Task{
		{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"},
		{ID: 2, UserID: 7, TaskType: TaskTypePersonal, Title: "Shopping"},
	}}
	fc := newFakeCache()
	s := newTestService(repo, fc)

	listed, err := s.List(context.Background(), 7)
	require.NoError(t, err)

	searched, err := s.Search(context.Background(), 7, SearchCriteria{})
	require.NoError(t, err)

	assert.Equal(t, listed, searched)
	assert.Zero(t, repo.criteriaCalls, "empty criteria must take the cache path")
}

func TestSearch_CaseSensitiveSubstring(t *testing.T) {
	repo := &fakeRepo{tasks: []Task{
		{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"},
		{ID: 2, UserID: 7, TaskType: TaskTypeWork, Title: "Shopping"},
	}}
	s := newTestService(repo, newFakeCache())

	// "Report" contains "epo"; matching is case-sensitive so "rep" finds nothing.
	got, err := s.Search(context.Background(), 7, SearchCriteria{TaskType: TaskTypeWork, Title: "epo"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Report", got[0].Title)

	got, err = s.Search(context.Background(), 7, SearchCriteria{TaskType: TaskTypeWork, Title: "rep"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_BypassesAndNeverWritesCache(t *testing.T) {
	repo := &fakeRepo{tasks: []Task{{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"}}}
	fc := newFakeCache()
	// Stale entry that must be ignored by a filtered search.
	fc.entries[collectionKey(7)] = cacheEntry(t, []Task{})
	s := newTestService(repo, fc)

	got, err := s.Search(context.Background(), 7, SearchCriteria{TaskType: TaskTypeWork})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, repo.criteriaCalls)
	assert.Zero(t, fc.sets, "search must never write the collection cache")
	assert.Equal(t, cacheEntry(t, []Task{}), fc.entries[collectionKey(7)], "search must not overwrite the entry")
}

func TestSearch_DateBoundsInclusive(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	repo := &fakeRepo{tasks: []Task{
		{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "a", UpdatedAt: now},
	}}
	s := newTestService(repo, newFakeCache())

	got, err := s.Search(context.Background(), 7, SearchCriteria{DateFrom: &now, DateTo: &now})
	require.NoError(t, err)
	assert.Len(t, got, 1, "bounds are inclusive on both ends")
}

// --- mutations ---

func TestCreate_InvalidatesCacheAfterInsert(t *testing.T) {
	repo := &fakeRepo{}
	fc := newFakeCache()
	fc.entries[collectionKey(7)] = cacheEntry(t, []Task{})
	s := newTestService(repo, fc)

	created, err := s.Create(context.Background(), &Task{
		UserID: 7, TaskType: TaskTypeWork, Title: "Report", Description: "Q1",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(7), created.UserID)
	assert.NotContains(t, fc.entries, collectionKey(7), "create must delete the cached collection")

	// A list issued after the mutation must include the new task even
	// though the earlier cache entry lacked it.
	listed, err := s.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Report", listed[0].Title)
}

func TestCreate_InvalidTaskType(t *testing.T) {
	repo := &fakeRepo{}
	fc := newFakeCache()
	fc.entries[collectionKey(7)] = cacheEntry(t, []Task{})
	s := newTestService(repo, fc)

	_, err := s.Create(context.Background(), &Task{UserID: 7, TaskType: "chores", Title: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidTaskType)
	assert.Contains(t, fc.entries, collectionKey(7), "no mutation, no invalidation")
}

func TestCreate_DuplicateLeavesCacheUntouched(t *testing.T) {
	repo := &fakeRepo{createErr: common.ErrDuplicateTask}
	fc := newFakeCache()
	fc.entries[collectionKey(7)] = cacheEntry(t, []Task{})
	s := newTestService(repo, fc)

	_, err := s.Create(context.Background(), &Task{UserID: 7, TaskType: TaskTypeWork, Title: "Report"})
	assert.ErrorIs(t, err, common.ErrDuplicateTask)
	assert.Contains(t, fc.entries, collectionKey(7))
	assert.Zero(t, fc.deletes)
}

func TestCreate_InvalidationFailureStillSucceeds(t *testing.T) {
	repo := &fakeRepo{}
	fc := newFakeCache()
	s := newTestService(repo, fc)
	fc.unavailable = true

	created, err := s.Create(context.Background(), &Task{UserID: 7, TaskType: TaskTypeWork, Title: "Report"})
	require.NoError(t, err, "the store is authoritative, a failed invalidation must not fail the write")
	assert.NotZero(t, created.ID)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	repo := &fakeRepo{}
	fc := newFakeCache()
	fc.entries[collectionKey(7)] = cacheEntry(t, []Task{})
	s := newTestService(repo, fc)

	err := s.Update(context.Background(), &Task{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"})
	require.NoError(t, err)
	assert.NotContains(t, fc.entries, collectionKey(7))
}

func TestUpdate_DuplicateLeavesCacheUntouched(t *testing.T) {
	repo := &fakeRepo{updateErr: common.ErrDuplicateTask}
	fc := newFakeCache()
	fc.entries[collectionKey(7)] = cacheEntry(t, []Task{})
	s := newTestService(repo, fc)

	err := s.Update(context.Background(), &Task{ID: 1, UserID: 7, TaskType: TaskTypeWork, Title: "Report"})
	assert.ErrorIs(t, err, common.ErrDuplicateTask)
	assert.Contains(t, fc.entries, collectionKey(7), "no mutation occurred, cache must stay")
}

func TestUpdate_InvalidTaskType(t *testing.T) {
	s := newTestService(&fakeRepo{}, newFakeCache())

	err := s.Update(context.Background(), &Task{ID: 1, UserID: 7, TaskType: "bogus", Title: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidTaskType)
}

func TestDelete_InvalidatesEvenWhenNothingDeleted(t *testing.T) {
	repo := &fakeRepo{}
	fc := newFakeCache()
	fc.entries[collectionKey(7)] = cacheEntry(t, []Task{})
	s := newTestService(repo, fc)

	err := s.Delete(context.Background(), 99, 7)
	require.NoError(t, err, "zero-row delete is idempotent success")
	assert.NotContains(t, fc.entries, collectionKey(7), "cached state is stale regardless")
}
