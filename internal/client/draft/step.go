package draft

import (
	"strings"

	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/richtext"
)

// StepFields is the serializable part of a build step.
type StepFields struct {
	ID           int64
	Order        int
	Title        string
	TitleInvalid bool
	Description  string
}

// BuildStep is one ordered stage of a project. Its fields are guarded by the
// owning project's lock.
type BuildStep struct {
	project *Project
	images  *attachments.Set
	files   *attachments.Set

	id           int64
	order        int
	title        string
	titleInvalid bool
	description  string
	deleted      bool
}

func (s *BuildStep) Fields() StepFields {
	s.project.mu.Lock()
	defer s.project.mu.Unlock()
	return StepFields{
		ID:           s.id,
		Order:        s.order,
		Title:        s.title,
		TitleInvalid: s.titleInvalid,
		Description:  s.description,
	}
}

func (s *BuildStep) ID() int64 {
	s.project.mu.Lock()
	defer s.project.mu.Unlock()
	return s.id
}

// Order is the 1-based position of the step. A removed step keeps the order
// it had at removal.
func (s *BuildStep) Order() int {
	s.project.mu.Lock()
	defer s.project.mu.Unlock()
	return s.order
}

func (s *BuildStep) Title() string {
	s.project.mu.Lock()
	defer s.project.mu.Unlock()
	return s.title
}

func (s *BuildStep) TitleInvalid() bool {
	s.project.mu.Lock()
	defer s.project.mu.Unlock()
	return s.titleInvalid
}

func (s *BuildStep) Description() string {
	s.project.mu.Lock()
	defer s.project.mu.Unlock()
	return s.description
}

func (s *BuildStep) DescriptionDoc() richtext.Document {
	return richtext.Decode(s.Description())
}

// Deleted reports whether the step has been tombstoned.
func (s *BuildStep) Deleted() bool {
	s.project.mu.Lock()
	defer s.project.mu.Unlock()
	return s.deleted
}

func (s *BuildStep) Images() *attachments.Set { return s.images }
func (s *BuildStep) Files() *attachments.Set  { return s.files }

func (s *BuildStep) SetID(id int64) {
	s.update(ChangeStep, func() { s.id = id })
}

// SetTitle stores title; a non-blank title clears a previous invalid mark.
func (s *BuildStep) SetTitle(title string) {
	s.update(ChangeStep, func() {
		s.title = title
		if strings.TrimSpace(title) != "" {
			s.titleInvalid = false
		}
	})
}

func (s *BuildStep) SetTitleInvalid(invalid bool) {
	s.update(ChangeStep, func() { s.titleInvalid = invalid })
}

func (s *BuildStep) SetDescription(payload string) {
	s.update(ChangeStep, func() { s.description = payload })
}

func (s *BuildStep) SetDescriptionDoc(doc richtext.Document) {
	s.SetDescription(richtext.Encode(doc))
}

func (s *BuildStep) update(kind ChangeKind, fn func()) {
	p := s.project
	p.mu.Lock()
	before := s.snapshotLocked()
	fn()
	after := s.snapshotLocked()
	deleted := s.deleted
	p.mu.Unlock()

	if before != after && !deleted {
		p.notify(Change{Kind: kind, Step: after.Order})
	}
}

func (s *BuildStep) setChanged(kind ChangeKind) {
	p := s.project
	p.mu.Lock()
	order, deleted := s.order, s.deleted
	p.mu.Unlock()

	if !deleted {
		p.notify(Change{Kind: kind, Step: order})
	}
}

func (s *BuildStep) snapshotLocked() StepFields {
	return StepFields{
		ID:           s.id,
		Order:        s.order,
		Title:        s.title,
		TitleInvalid: s.titleInvalid,
		Description:  s.description,
	}
}
