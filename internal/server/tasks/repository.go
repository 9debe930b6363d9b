package tasks

import (
	"context"
)

type Repository interface {
	FindByUserID(ctx context.Context, userID int64) ([]Task, error)
	FindByUserIDAndCriteria(ctx context.Context, userID int64, criteria SearchCriteria) ([]Task, error)
	FindByIDAndUserID(ctx context.Context, taskID int64, userID int64) (*Task, error)
	Create(ctx context.Context, task *Task) (*Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, taskID int64, userID int64) error
}
