package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/common"
	"github.com/dmitrijs2005/buildlog/internal/dbx"
	"github.com/dmitrijs2005/buildlog/internal/server/models"
	"github.com/dmitrijs2005/buildlog/internal/server/repositories/categories"
	"github.com/dmitrijs2005/buildlog/internal/server/repositories/projects"
)

type fakeProjects struct {
	nextID    int64
	projects  map[int64]*models.Project
	steps     []models.BuildStep
	files     []models.File
	insertErr error
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{nextID: 1, projects: map[int64]*models.Project{}}
}

func (f *fakeProjects) Insert(_ context.Context, p *models.Project) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	cp := *p
	cp.ID = f.nextID
	f.nextID++
	f.projects[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeProjects) Update(_ context.Context, p *models.Project) error {
	cur, ok := f.projects[p.ID]
	if !ok {
		return common.ErrNotFound
	}
	cur.Title, cur.Description, cur.CategoryID = p.Title, p.Description, p.CategoryID
	return nil
}

func (f *fakeProjects) Get(_ context.Context, id int64) (*models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	cp.CategoryName = "Decks & Outdoor"
	return &cp, nil
}

func (f *fakeProjects) LockOwner(_ context.Context, id int64) (string, error) {
	p, ok := f.projects[id]
	if !ok {
		return "", common.ErrNotFound
	}
	return p.UserID, nil
}

func (f *fakeProjects) DeleteChildren(_ context.Context, id int64) error {
	var steps []models.BuildStep
	for _, s := range f.steps {
		if s.ProjectID != id {
			steps = append(steps, s)
		}
	}
	var files []models.File
	for _, fl := range f.files {
		if fl.ProjectID != id {
			files = append(files, fl)
		}
	}
	f.steps, f.files = steps, files
	return nil
}

func (f *fakeProjects) InsertStep(_ context.Context, s *models.BuildStep) (int64, error) {
	cp := *s
	cp.ID = 100 + int64(len(f.steps))
	f.steps = append(f.steps, cp)
	return cp.ID, nil
}

func (f *fakeProjects) InsertFile(_ context.Context, fl *models.File) error {
	f.files = append(f.files, *fl)
	return nil
}

func (f *fakeProjects) ListSteps(_ context.Context, id int64) ([]models.BuildStep, error) {
	var out []models.BuildStep
	for _, s := range f.steps {
		if s.ProjectID == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeProjects) ListFiles(_ context.Context, id int64) ([]models.File, error) {
	var out []models.File
	for _, fl := range f.files {
		if fl.ProjectID == id {
			out = append(out, fl)
		}
	}
	return out, nil
}

type fakeCategories struct {
	rows []models.Category
}

func (f fakeCategories) List(context.Context) ([]models.Category, error) { return f.rows, nil }

func (f fakeCategories) Exists(_ context.Context, id int64) (bool, error) {
	for _, c := range f.rows {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeManager struct {
	projects   *fakeProjects
	categories fakeCategories
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Projects(dbx.DBTX) projects.Repository        { return m.projects }
func (m *fakeManager) Categories(dbx.DBTX) categories.Repository    { return m.categories }

func seed() fakeCategories {
	parent := func(id int64) sql.NullInt64 { return sql.NullInt64{Int64: id, Valid: true} }
	return fakeCategories{rows: []models.Category{
		{ID: 1, Name: "Woodworking"},
		{ID: 2, Name: "Electronics"},
		{ID: 101, ParentID: parent(1), Name: "Furniture"},
		{ID: 102, ParentID: parent(1), Name: "Decks & Outdoor"},
		{ID: 201, ParentID: parent(2), Name: "Audio"},
		{ID: 999, ParentID: parent(42), Name: "Orphan"},
	}}
}

func newService(t *testing.T) (*ProjectService, *fakeManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	m := &fakeManager{projects: newFakeProjects(), categories: seed()}
	return NewProjectService(db, m, nil), m, mock
}

func validRequest() api.ProjectRequest {
	return api.ProjectRequest{
		Title:       " Deck Build ",
		Description: "ZGVzYw==",
		CategoryID:  102,
		UserID:      "u1",
		Files: []api.FileRef{
			{FileName: "cover.jpg", Key: "k-cover", IsImage: true, Size: 3},
			{FileName: "plans.pdf", Key: "k-plans", Size: 9},
		},
		BuildSteps: []api.BuildStepRequest{
			{Title: "Footings", Files: []api.FileRef{{FileName: "hole.jpg", Key: "k-hole", IsImage: true, Size: 4}}},
			{Title: "Framing", Files: []api.FileRef{{FileName: "frame.jpg", Key: "k-frame", IsImage: true, Size: 5}}},
		},
	}
}

func TestCategories_BuildsTree(t *testing.T) {
	s, _, _ := newService(t)

	tree, err := s.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Woodworking", tree[0].Name)
	require.Len(t, tree[0].Subcategories, 2)
	assert.Equal(t, int64(102), tree[0].Subcategories[1].ID)
	assert.Len(t, tree[1].Subcategories, 1)
}

func TestCreateThenGet(t *testing.T) {
	s, m, mock := newService(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	ctx := context.Background()
	id, err := s.Create(ctx, "u1", validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "Deck Build", m.projects.projects[id].Title)

	m.projects.projects[id].CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.CategoryRef{ID: 102, Name: "Decks & Outdoor"}, rec.Category)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, []string{"cover.jpg", "plans.pdf"}, names(rec.Files))
	require.Len(t, rec.BuildSteps, 2)
	assert.Equal(t, 1, rec.BuildSteps[0].Order)
	assert.Equal(t, "Framing", rec.BuildSteps[1].Title)
	assert.Equal(t, []string{"frame.jpg"}, names(rec.BuildSteps[1].Files))
}

func TestCreate_ValidationRollsBack(t *testing.T) {
	s, m, mock := newService(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	req := validRequest()
	req.Title = "  "
	req.CategoryID = 7
	req.BuildSteps[1].Files = nil

	_, err := s.Create(context.Background(), "u1", req)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorContains(t, err, "title is required")
	assert.ErrorContains(t, err, "unknown category")
	assert.ErrorContains(t, err, "step 2: add at least one image")
	assert.Empty(t, m.projects.projects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UserMismatch(t *testing.T) {
	s, _, _ := newService(t)

	_, err := s.Create(context.Background(), "u2", validRequest())
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestCreate_RepoErrorRollsBack(t *testing.T) {
	s, m, mock := newService(t)
	m.projects.insertErr = errors.New("db down")
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), "u1", validRequest())
	assert.EqualError(t, err, "db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_ReplacesTree(t *testing.T) {
	s, m, mock := newService(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	ctx := context.Background()
	id, err := s.Create(ctx, "u1", validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Title = "Deck Build v2"
	req.BuildSteps = req.BuildSteps[:1]
	require.NoError(t, s.Update(ctx, "u1", id, req))

	assert.Equal(t, "Deck Build v2", m.projects.projects[id].Title)
	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, rec.BuildSteps, 1)
	assert.Len(t, rec.Files, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotOwner(t *testing.T) {
	s, m, mock := newService(t)
	m.projects.projects[5] = &models.Project{ID: 5, UserID: "someone-else"}
	mock.ExpectBegin()
	mock.ExpectRollback()

	req := validRequest()
	req.UserID = ""
	err := s.Update(context.Background(), "u1", 5, req)
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_Missing(t *testing.T) {
	s, _, mock := newService(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.Update(context.Background(), "u1", 404, validRequest())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGet_Missing(t *testing.T) {
	s, _, _ := newService(t)

	_, err := s.Get(context.Background(), 3)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func names(refs []api.FileRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.FileName)
	}
	return out
}
