// Package draft holds the in-memory project document edited before publish.
//
// The serializable fields (Fields, StepFields) are kept apart from the
// attachment sets that carry binary payloads: pipelines reach the bytes
// through Snapshot and the attachments API, never through the field values.
package draft

import (
	"errors"
	"sync"

	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/richtext"
)

var ErrStepNotFound = errors.New("build step not found")

// Fields is the serializable part of a project draft. ID 0 means the
// project has not been created on the backend yet and CategoryID 0 means no
// category is selected.
type Fields struct {
	ID          int64
	Title       string
	CategoryID  int64
	Description string
}

// ChangeKind says which part of the draft a Change touched.
type ChangeKind int

const (
	ChangeFields ChangeKind = iota
	ChangeImages
	ChangeFiles
	ChangeSteps
	ChangeStep
	ChangeStepImages
	ChangeStepFiles
)

// Change is delivered to subscribers after every mutation. Step is the order
// of the affected build step, or 0 for project-level changes.
type Change struct {
	Kind ChangeKind
	Step int
}

// Project is the aggregate root of a draft. All of its build steps share its
// lock so that step removal and renumbering are observed as one step.
type Project struct {
	previews attachments.PreviewProvider
	images   *attachments.Set
	files    *attachments.Set

	mu     sync.Mutex
	fields Fields
	steps  []*BuildStep

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// New returns an empty draft. previews may be nil when no display handles
// are needed.
func New(previews attachments.PreviewProvider) *Project {
	p := &Project{
		previews: previews,
		images:   attachments.NewSet(attachments.KindImage, previews),
		files:    attachments.NewSet(attachments.KindFile, previews),
		subs:     make(map[int]func(Change)),
	}
	p.images.OnChange(func() { p.notify(Change{Kind: ChangeImages}) })
	p.files.OnChange(func() { p.notify(Change{Kind: ChangeFiles}) })
	return p
}

func (p *Project) Fields() Fields {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields
}

func (p *Project) ID() int64 { return p.Fields().ID }

func (p *Project) SetID(id int64) {
	p.updateFields(func(f *Fields) { f.ID = id })
}

func (p *Project) SetTitle(title string) {
	p.updateFields(func(f *Fields) { f.Title = title })
}

func (p *Project) SetCategory(id int64) {
	p.updateFields(func(f *Fields) { f.CategoryID = id })
}

// SetDescription stores an already serialized rich text payload.
func (p *Project) SetDescription(payload string) {
	p.updateFields(func(f *Fields) { f.Description = payload })
}

// SetDescriptionDoc serializes doc and stores it as the description.
func (p *Project) SetDescriptionDoc(doc richtext.Document) {
	p.SetDescription(richtext.Encode(doc))
}

func (p *Project) DescriptionDoc() richtext.Document {
	return richtext.Decode(p.Fields().Description)
}

func (p *Project) Images() *attachments.Set { return p.images }
func (p *Project) Files() *attachments.Set  { return p.files }

// AddStep appends an empty build step with the next order.
func (p *Project) AddStep() *BuildStep {
	s := &BuildStep{project: p}
	s.images = attachments.NewSet(attachments.KindImage, p.previews)
	s.files = attachments.NewSet(attachments.KindFile, p.previews)
	s.images.OnChange(func() { s.setChanged(ChangeStepImages) })
	s.files.OnChange(func() { s.setChanged(ChangeStepFiles) })

	p.mu.Lock()
	p.steps = append(p.steps, s)
	s.order = len(p.steps)
	order := s.order
	p.mu.Unlock()

	p.notify(Change{Kind: ChangeSteps, Step: order})
	return s
}

// RemoveStep tombstones the step at order and renumbers the remaining steps
// to 1..n-1 before the lock is released.
func (p *Project) RemoveStep(order int) error {
	p.mu.Lock()
	if order < 1 || order > len(p.steps) {
		p.mu.Unlock()
		return ErrStepNotFound
	}
	removed := p.steps[order-1]
	removed.deleted = true
	p.steps = append(p.steps[:order-1], p.steps[order:]...)
	for i, s := range p.steps {
		s.order = i + 1
	}
	p.mu.Unlock()

	removed.images.Discard()
	removed.files.Discard()
	p.notify(Change{Kind: ChangeSteps, Step: order})
	return nil
}

// Step returns the live step at order.
func (p *Project) Step(order int) (*BuildStep, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if order < 1 || order > len(p.steps) {
		return nil, false
	}
	return p.steps[order-1], true
}

// Steps lists the live steps in order.
func (p *Project) Steps() []*BuildStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*BuildStep(nil), p.steps...)
}

func (p *Project) StepCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps)
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs on the goroutine that made the change, outside
// the draft's lock.
func (p *Project) Subscribe(fn func(Change)) (cancel func()) {
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
		})
	}
}

// Discard drops every step and releases all preview handles held by the
// draft's attachment sets.
func (p *Project) Discard() {
	p.mu.Lock()
	steps := p.steps
	p.steps = nil
	for _, s := range steps {
		s.deleted = true
	}
	p.mu.Unlock()

	for _, s := range steps {
		s.images.Discard()
		s.files.Discard()
	}
	p.images.Discard()
	p.files.Discard()
}

func (p *Project) updateFields(fn func(*Fields)) {
	p.mu.Lock()
	before := p.fields
	fn(&p.fields)
	changed := before != p.fields
	p.mu.Unlock()

	if changed {
		p.notify(Change{Kind: ChangeFields})
	}
}

func (p *Project) notify(c Change) {
	p.subMu.Lock()
	fns := make([]func(Change), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
