package projects

import (
	"context"

	"github.com/dmitrijs2005/buildlog/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, p *models.Project) (int64, error)
	Update(ctx context.Context, p *models.Project) error
	Get(ctx context.Context, id int64) (*models.Project, error)
	LockOwner(ctx context.Context, id int64) (string, error)
	DeleteChildren(ctx context.Context, projectID int64) error
	InsertStep(ctx context.Context, s *models.BuildStep) (int64, error)
	InsertFile(ctx context.Context, f *models.File) error
	ListSteps(ctx context.Context, projectID int64) ([]models.BuildStep, error)
	ListFiles(ctx context.Context, projectID int64) ([]models.File, error)
}
