// Package api defines the JSON wire contract shared by the BuildLog client
// and the reference backend.
//
// A create (POST /projects) and an update (PUT /projects/{id}) carry the same
// ProjectRequest body: an update replaces the whole tree, it is not a patch.
package api

import (
	"strconv"
	"time"
)

// FileRef points at one uploaded object in storage.
type FileRef struct {
	FileName string `json:"fileName"`
	Key      string `json:"key"`
	IsImage  bool   `json:"isImage"`
	Size     int64  `json:"size"`
}

// BuildStepRequest is one build step inside a ProjectRequest. Steps are sent
// in their display order.
type BuildStepRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Files       []FileRef `json:"files"`
}

// ProjectRequest is the body of both create and update calls.
type ProjectRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CategoryID  int64              `json:"categoryId"`
	UserID      string             `json:"userId"`
	Files       []FileRef          `json:"files"`
	BuildSteps  []BuildStepRequest `json:"buildSteps"`
}

// CreatedResponse is returned with 201 on create.
type CreatedResponse struct {
	ID int64 `json:"id"`
}

// Category is a node of the two-level category tree.
type Category struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Subcategories []Category `json:"subcategories"`
}

type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type BuildStepRecord struct {
	ID          int64     `json:"id"`
	Order       int       `json:"order"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Files       []FileRef `json:"files"`
}

// ProjectRecord is the full nested project returned by GET /projects/{id}.
type ProjectRecord struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    CategoryRef       `json:"category"`
	UserID      string            `json:"userId"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	BuildSteps  []BuildStepRecord `json:"buildSteps"`
	Files       []FileRef         `json:"files"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProjectRoute is the route a client navigates to after a successful publish.
func ProjectRoute(id int64) string {
	return "/projects/" + strconv.FormatInt(id, 10)
}
