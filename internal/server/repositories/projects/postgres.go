// Package projects stores projects, their build steps and attachment rows in
// PostgreSQL.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/buildlog/internal/common"
	"github.com/dmitrijs2005/buildlog/internal/dbx"
	"github.com/dmitrijs2005/buildlog/internal/server/models"
)

// PostgresRepository works over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, p *models.Project) (int64, error) {
	query := `
		INSERT INTO projects (user_id, title, description, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, p.UserID, p.Title, p.Description, p.CategoryID).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// Update rewrites the scalar fields of project p.ID and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, p *models.Project) error {
	query := `
		UPDATE projects
		SET title = $2, description = $3, category_id = $4, updated_at = now()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, p.ID, p.Title, p.Description, p.CategoryID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Project, error) {
	query := `
		SELECT p.id, p.user_id, p.title, p.description, p.category_id, c.name, p.created_at, p.updated_at
		FROM projects p JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`
	var p models.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.CategoryID, &p.CategoryName, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

// LockOwner returns the owner of project id and locks its row until the
// surrounding transaction ends.
func (r *PostgresRepository) LockOwner(ctx context.Context, id int64) (string, error) {
	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return owner, nil
}

// DeleteChildren removes every step and attachment of a project.
func (r *PostgresRepository) DeleteChildren(ctx context.Context, projectID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM project_files WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM build_steps WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertStep(ctx context.Context, s *models.BuildStep) (int64, error) {
	query := `
		INSERT INTO build_steps (project_id, position, title, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, s.ProjectID, s.Position, s.Title, s.Description).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) InsertFile(ctx context.Context, f *models.File) error {
	query := `
		INSERT INTO project_files (project_id, build_step_id, position, file_name, storage_key, is_image, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		f.ProjectID, f.StepID, f.Position, f.FileName, f.StorageKey, f.IsImage, f.Size)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListSteps(ctx context.Context, projectID int64) ([]models.BuildStep, error) {
	query := `
		SELECT id, project_id, position, title, description
		FROM build_steps WHERE project_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to select steps: %w", err)
	}
	defer rows.Close()

	var out []models.BuildStep
	for rows.Next() {
		var s models.BuildStep
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Position, &s.Title, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFiles returns all attachment rows of a project, project-level and
// per step, ordered by position.
func (r *PostgresRepository) ListFiles(ctx context.Context, projectID int64) ([]models.File, error) {
	query := `
		SELECT id, project_id, build_step_id, position, file_name, storage_key, is_image, size
		FROM project_files WHERE project_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var out []models.File
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.StepID, &f.Position, &f.FileName, &f.StorageKey, &f.IsImage, &f.Size); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
