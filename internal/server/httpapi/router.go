// Package httpapi exposes the project service over REST with gin.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/logging"
)

// ProjectService is what the handlers need from services.ProjectService.
type ProjectService interface {
	Categories(ctx context.Context) ([]api.Category, error)
	Create(ctx context.Context, userID string, req api.ProjectRequest) (int64, error)
	Update(ctx context.Context, userID string, id int64, req api.ProjectRequest) error
	Get(ctx context.Context, id int64) (*api.ProjectRecord, error)
}

// NewRouter wires every route. Reads are public, writes need a bearer token
// signed with secretKey.
func NewRouter(svc ProjectService, secretKey []byte, log logging.Logger) *gin.Engine {
	if log == nil {
		log = logging.Nop()
	}
	h := &Handler{svc: svc, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/ping", h.Ping)
	r.GET("/categories", h.Categories)
	r.GET("/projects/:id", h.GetProject)

	authed := r.Group("/")
	authed.Use(AuthMiddleware(secretKey))
	authed.POST("/projects", h.CreateProject)
	authed.PUT("/projects/:id", h.UpdateProject)

	return r
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
