// Package services holds the backend's transactional business logic.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/common"
	"github.com/dmitrijs2005/buildlog/internal/dbx"
	"github.com/dmitrijs2005/buildlog/internal/logging"
	"github.com/dmitrijs2005/buildlog/internal/server/models"
	"github.com/dmitrijs2005/buildlog/internal/server/repositories/repomanager"
)

type ProjectService struct {
	db  dbx.TxStarter
	q   dbx.DBTX
	rm  repomanager.RepositoryManager
	log logging.Logger
}

// NewProjectService takes *sql.DB for both reads and transactions.
func NewProjectService(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *ProjectService {
	return newProjectService(db, db, rm, log)
}

func newProjectService(tx dbx.TxStarter, q dbx.DBTX, rm repomanager.RepositoryManager, log logging.Logger) *ProjectService {
	if log == nil {
		log = logging.Nop()
	}
	return &ProjectService{db: tx, q: q, rm: rm, log: log}
}

// Categories returns the two-level tree. Children whose parent is unknown
// are dropped.
func (s *ProjectService) Categories(ctx context.Context) ([]api.Category, error) {
	rows, err := s.rm.Categories(s.q).List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]api.Category, 0)
	index := make(map[int64]int)
	for _, c := range rows {
		if c.ParentID.Valid {
			continue
		}
		index[c.ID] = len(out)
		out = append(out, api.Category{ID: c.ID, Name: c.Name, Subcategories: []api.Category{}})
	}
	for _, c := range rows {
		if !c.ParentID.Valid {
			continue
		}
		i, ok := index[c.ParentID.Int64]
		if !ok {
			continue
		}
		out[i].Subcategories = append(out[i].Subcategories, api.Category{ID: c.ID, Name: c.Name, Subcategories: []api.Category{}})
	}
	return out, nil
}

// Create stores a new project owned by userID.
func (s *ProjectService) Create(ctx context.Context, userID string, req api.ProjectRequest) (int64, error) {
	if err := checkOwner(userID, req); err != nil {
		return 0, err
	}

	var id int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.validate(ctx, tx, req); err != nil {
			return err
		}
		repo := s.rm.Projects(tx)
		var err error
		id, err = repo.Insert(ctx, &models.Project{
			UserID:      userID,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			CategoryID:  req.CategoryID,
		})
		if err != nil {
			return err
		}
		return insertTree(ctx, repo, id, req)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info(ctx, "project created", "id", id, "user", userID, "steps", len(req.BuildSteps))
	return id, nil
}

// Update replaces the whole tree of project id. Only the owner may do so.
func (s *ProjectService) Update(ctx context.Context, userID string, id int64, req api.ProjectRequest) error {
	if err := checkOwner(userID, req); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Projects(tx)
		owner, err := repo.LockOwner(ctx, id)
		if err != nil {
			return err
		}
		if owner != userID {
			return common.ErrForbidden
		}
		if err := s.validate(ctx, tx, req); err != nil {
			return err
		}
		err = repo.Update(ctx, &models.Project{
			ID:          id,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			CategoryID:  req.CategoryID,
		})
		if err != nil {
			return err
		}
		if err := repo.DeleteChildren(ctx, id); err != nil {
			return err
		}
		return insertTree(ctx, repo, id, req)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "project updated", "id", id, "user", userID, "steps", len(req.BuildSteps))
	return nil
}

// Get returns the nested record of project id.
func (s *ProjectService) Get(ctx context.Context, id int64) (*api.ProjectRecord, error) {
	repo := s.rm.Projects(s.q)
	p, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := repo.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := repo.ListFiles(ctx, id)
	if err != nil {
		return nil, err
	}

	rec := &api.ProjectRecord{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    api.CategoryRef{ID: p.CategoryID, Name: p.CategoryName},
		UserID:      p.UserID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Files:       []api.FileRef{},
		BuildSteps:  make([]api.BuildStepRecord, 0, len(steps)),
	}

	byStep := make(map[int64]int, len(steps))
	for _, st := range steps {
		byStep[st.ID] = len(rec.BuildSteps)
		rec.BuildSteps = append(rec.BuildSteps, api.BuildStepRecord{
			ID:          st.ID,
			Order:       st.Position,
			Title:       st.Title,
			Description: st.Description,
			Files:       []api.FileRef{},
		})
	}
	for _, f := range files {
		ref := api.FileRef{FileName: f.FileName, Key: f.StorageKey, IsImage: f.IsImage, Size: f.Size}
		if !f.StepID.Valid {
			rec.Files = append(rec.Files, ref)
			continue
		}
		if i, ok := byStep[f.StepID.Int64]; ok {
			rec.BuildSteps[i].Files = append(rec.BuildSteps[i].Files, ref)
		}
	}
	return rec, nil
}

func checkOwner(userID string, req api.ProjectRequest) error {
	if userID == "" {
		return common.ErrUnauthorized
	}
	if req.UserID != "" && req.UserID != userID {
		return common.ErrForbidden
	}
	return nil
}

func insertTree(ctx context.Context, repo interface {
	InsertStep(context.Context, *models.BuildStep) (int64, error)
	InsertFile(context.Context, *models.File) error
}, projectID int64, req api.ProjectRequest) error {
	for i, f := range req.Files {
		if err := repo.InsertFile(ctx, fileRow(projectID, sql.NullInt64{}, i, f)); err != nil {
			return err
		}
	}
	for i, st := range req.BuildSteps {
		stepID, err := repo.InsertStep(ctx, &models.BuildStep{
			ProjectID:   projectID,
			Position:    i + 1,
			Title:       strings.TrimSpace(st.Title),
			Description: st.Description,
		})
		if err != nil {
			return err
		}
		for j, f := range st.Files {
			if err := repo.InsertFile(ctx, fileRow(projectID, sql.NullInt64{Int64: stepID, Valid: true}, j, f)); err != nil {
				return err
			}
		}
	}
	return nil
}

func fileRow(projectID int64, stepID sql.NullInt64, pos int, f api.FileRef) *models.File {
	return &models.File{
		ProjectID:  projectID,
		StepID:     stepID,
		Position:   pos,
		FileName:   f.FileName,
		StorageKey: f.Key,
		IsImage:    f.IsImage,
		Size:       f.Size,
	}
}

// validate applies the client's publish rules plus a category lookup.
func (s *ProjectService) validate(ctx context.Context, tx dbx.DBTX, req api.ProjectRequest) error {
	var problems []string
	if strings.TrimSpace(req.Title) == "" {
		problems = append(problems, "title is required")
	}
	if req.Description == "" {
		problems = append(problems, "description is required")
	}
	if !hasImage(req.Files) {
		problems = append(problems, "add at least one image")
	}
	for i, st := range req.BuildSteps {
		if strings.TrimSpace(st.Title) == "" {
			problems = append(problems, fmt.Sprintf("step %d: title is required", i+1))
		}
		if !hasImage(st.Files) {
			problems = append(problems, fmt.Sprintf("step %d: add at least one image", i+1))
		}
	}
	for _, f := range allFiles(req) {
		if f.Key == "" || f.FileName == "" {
			problems = append(problems, "file reference without key or name")
			break
		}
	}

	if req.CategoryID == 0 {
		problems = append(problems, "select a category")
	} else {
		ok, err := s.rm.Categories(tx).Exists(ctx, req.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			problems = append(problems, "unknown category")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func hasImage(refs []api.FileRef) bool {
	for _, f := range refs {
		if f.IsImage {
			return true
		}
	}
	return false
}

func allFiles(req api.ProjectRequest) []api.FileRef {
	out := append([]api.FileRef(nil), req.Files...)
	for _, st := range req.BuildSteps {
		out = append(out, st.Files...)
	}
	return out
}
