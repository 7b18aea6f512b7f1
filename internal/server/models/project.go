// Package models holds the backend's database row types.
package models

import (
	"database/sql"
	"time"
)

type Category struct {
	ID       int64
	ParentID sql.NullInt64
	Name     string
}

type Project struct {
	ID           int64
	UserID       string
	Title        string
	Description  string
	CategoryID   int64
	CategoryName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type BuildStep struct {
	ID          int64
	ProjectID   int64
	Position    int
	Title       string
	Description string
}

// File is an attachment row. StepID is null for project-level files.
type File struct {
	ID         int64
	ProjectID  int64
	StepID     sql.NullInt64
	Position   int
	FileName   string
	StorageKey string
	IsImage    bool
	Size       int64
}
