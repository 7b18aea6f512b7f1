package client

import (
	"context"

	"github.com/dmitrijs2005/buildlog/internal/api"
)

type Client interface {
	Categories(ctx context.Context) ([]api.Category, error)
	CreateProject(ctx context.Context, req api.ProjectRequest) (int64, error)
	UpdateProject(ctx context.Context, id int64, req api.ProjectRequest) error
	GetProject(ctx context.Context, id int64) (*api.ProjectRecord, error)
	Ping(ctx context.Context) error
}

// TokenSource yields the bearer token for the current session.
type TokenSource interface {
	Token() (string, error)
}
