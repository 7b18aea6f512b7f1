// Package publish turns a valid draft into a backend project: it uploads
// every local asset of the tree concurrently, waits for all of them, and
// then issues a single create or update request.
//
// The pipeline works on a snapshot and never mutates the draft, so a failed
// run can be retried as is.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/storage"
	"github.com/dmitrijs2005/buildlog/internal/client/validation"
	"github.com/dmitrijs2005/buildlog/internal/logging"
)

const DefaultConcurrency = 4

type Backend interface {
	CreateProject(ctx context.Context, req api.ProjectRequest) (int64, error)
	UpdateProject(ctx context.Context, id int64, req api.ProjectRequest) error
}

// Identity supplies the user the uploads and the project belong to.
type Identity interface {
	UserID() (string, error)
}

type Deps struct {
	Store       storage.ObjectStore
	Backend     Backend
	Session     Identity
	Logger      logging.Logger
	Concurrency int
}

// Outcome is what a finished Submit reports to the caller.
type Outcome struct {
	ProjectID  int64
	Route      string
	Validation validation.Result
}

type Pipeline struct {
	deps Deps

	// notifyMu serializes state changes with their delivery so subscribers
	// see them in order.
	notifyMu sync.Mutex

	mu       sync.Mutex
	progress Progress
	notice   string
	run      uint64
	cancel   context.CancelFunc
	subs     map[int]func(Progress)
	nextSub  int
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}
	return &Pipeline{deps: deps, subs: make(map[int]func(Progress))}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress.State
}

func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Notice is the aggregate validation banner left by the last invalid
// submit, or "" once dismissed or after a valid submit.
func (p *Pipeline) Notice() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notice
}

func (p *Pipeline) DismissNotice() {
	p.mu.Lock()
	p.notice = ""
	p.mu.Unlock()
}

// Subscribe registers fn for every progress change and returns a function
// that removes it. fn must not call Submit, Reset or Abandon.
func (p *Pipeline) Subscribe(fn func(Progress)) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Reset returns a finished pipeline to Idle.
func (p *Pipeline) Reset() error {
	var err error
	p.transition(func(pr *Progress) bool {
		if pr.State.Busy() {
			err = ErrBusy
			return false
		}
		if pr.State == Idle {
			return false
		}
		*pr = Progress{State: Idle}
		return true
	})
	return err
}

// Abandon cancels the run in flight, if any, and returns to Idle. Uploads
// already started are canceled through their context and their results are
// ignored; nothing is submitted.
func (p *Pipeline) Abandon() {
	p.notifyMu.Lock()
	p.mu.Lock()
	if !p.progress.State.Busy() {
		p.mu.Unlock()
		p.notifyMu.Unlock()
		return
	}
	p.run++
	cancel := p.cancel
	p.cancel = nil
	p.progress = Progress{State: Idle}
	pr, subs := p.progress, p.subscribersLocked()
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	deliver(subs, pr)
	p.notifyMu.Unlock()

	p.deps.Logger.Info(context.Background(), "publish abandoned")
}

// Submit validates d and, when it is valid, publishes it. It is accepted
// only while the pipeline is Idle or Failed; otherwise it returns ErrBusy
// without touching anything. An invalid draft returns ErrInvalidDraft with
// the field errors in Outcome.Validation and makes no network call.
func (p *Pipeline) Submit(ctx context.Context, d *draft.Project) (Outcome, error) {
	run, ok := p.begin()
	if !ok {
		return Outcome{}, ErrBusy
	}
	log := p.deps.Logger.With("run", run)

	res := validation.Validate(d)
	if !res.Valid {
		p.mu.Lock()
		p.notice = res.Notice
		p.mu.Unlock()
		p.step(run, func(pr *Progress) { pr.State = Invalid })
		p.step(run, func(pr *Progress) { *pr = Progress{State: Idle} })
		log.Info(ctx, "publish rejected by validation", "errors", len(res.Errors))
		return Outcome{Validation: res}, ErrInvalidDraft
	}
	p.DismissNotice()

	snap := d.Snapshot()
	if n := snap.Pending(); n > 0 {
		return Outcome{Validation: res}, p.fail(ctx, run, fmt.Errorf("%w: %d remaining", ErrAssetsPending, n))
	}

	userID, err := p.deps.Session.UserID()
	if err != nil {
		return Outcome{Validation: res}, p.fail(ctx, run, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !p.attach(run, cancel) {
		return Outcome{Validation: res}, ErrAbandoned
	}

	total := snap.LocalAssets()
	p.step(run, func(pr *Progress) { pr.State, pr.Total = Uploading, total })
	log.Info(ctx, "uploading assets", "count", total)

	up, err := p.upload(ctx, run, snap, userID)
	if err != nil {
		return Outcome{Validation: res}, p.fail(ctx, run, err)
	}

	if !p.step(run, func(pr *Progress) { pr.State = Submitting }) {
		return Outcome{Validation: res}, ErrAbandoned
	}
	req := BuildPayload(snap, up, userID)

	id := snap.ID
	if id == 0 {
		id, err = p.deps.Backend.CreateProject(ctx, req)
	} else {
		err = p.deps.Backend.UpdateProject(ctx, id, req)
	}
	if err != nil {
		return Outcome{Validation: res}, p.fail(ctx, run, fmt.Errorf("submit project: %w", err))
	}

	route := api.ProjectRoute(id)
	if !p.step(run, func(pr *Progress) {
		pr.State, pr.ProjectID, pr.Route = Succeeded, id, route
	}) {
		return Outcome{Validation: res}, ErrAbandoned
	}
	p.detach(run)
	log.Info(ctx, "project published", "id", id, "steps", len(req.BuildSteps), "files", total)

	return Outcome{ProjectID: id, Route: route, Validation: res}, nil
}

// upload stores every local asset of snap and fills the returned Uploads in
// set order. The first failure cancels the remaining uploads.
func (p *Pipeline) upload(ctx context.Context, run uint64, snap draft.Snapshot, userID string) (*Uploads, error) {
	up := newUploads(snap)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Concurrency)

	schedule := func(v attachments.View, dst []api.FileRef) {
		isImage := v.Kind == attachments.KindImage
		for i, a := range v.Local {
			i, a := i, a
			g.Go(func() error {
				ref, err := p.put(gctx, a, isImage, userID)
				if err != nil {
					return err
				}
				dst[i] = ref
				p.step(run, func(pr *Progress) { pr.Uploaded++ })
				return nil
			})
		}
	}

	schedule(snap.Images, up.Project.Images)
	schedule(snap.Files, up.Project.Files)
	for i, s := range snap.Steps {
		schedule(s.Images, up.Steps[i].Images)
		schedule(s.Files, up.Steps[i].Files)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return up, nil
}

func (p *Pipeline) put(ctx context.Context, a attachments.Asset, isImage bool, userID string) (api.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return api.FileRef{}, err
	}
	ct := a.ContentType
	if ct == "" {
		ct = attachments.DetectContentType(a.Name, a.Data)
	}

	key, err := p.deps.Store.Put(ctx, storage.NewKey(a.Name), a.Data, storage.PutOptions{
		Visibility:  storage.Protected,
		ContentType: ct,
		Owner:       userID,
	})
	if err != nil {
		if ctx.Err() == nil {
			p.deps.Logger.Error(ctx, "asset upload failed", "name", a.Name, "error", err)
		}
		return api.FileRef{}, fmt.Errorf("upload %s: %w", a.Name, err)
	}
	return api.FileRef{FileName: a.Name, Key: key, IsImage: isImage, Size: a.Size()}, nil
}

// begin moves Idle or Failed to Validating and starts a new run.
func (p *Pipeline) begin() (uint64, bool) {
	var run uint64
	ok := p.transition(func(pr *Progress) bool {
		if pr.State != Idle && pr.State != Failed {
			return false
		}
		p.run++
		run = p.run
		*pr = Progress{State: Validating}
		return true
	})
	return run, ok
}

func (p *Pipeline) attach(run uint64, cancel context.CancelFunc) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run != run {
		return false
	}
	p.cancel = cancel
	return true
}

func (p *Pipeline) detach(run uint64) {
	p.mu.Lock()
	if p.run == run {
		p.cancel = nil
	}
	p.mu.Unlock()
}

// fail moves the run to Failed unless it was abandoned meanwhile.
func (p *Pipeline) fail(ctx context.Context, run uint64, err error) error {
	if !p.step(run, func(pr *Progress) { pr.State, pr.Err = Failed, err }) {
		return fmt.Errorf("%w: %w", ErrAbandoned, err)
	}
	p.detach(run)
	p.deps.Logger.Error(ctx, "publish failed", "run", run, "error", err)
	return err
}

// step applies fn if run is still the current run.
func (p *Pipeline) step(run uint64, fn func(*Progress)) bool {
	return p.transition(func(pr *Progress) bool {
		if p.run != run {
			return false
		}
		fn(pr)
		return true
	})
}

// transition runs fn under the lock and, when it reports a change, delivers
// the new progress to subscribers.
func (p *Pipeline) transition(fn func(*Progress) bool) bool {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	changed := fn(&p.progress)
	pr, subs := p.progress, p.subscribersLocked()
	p.mu.Unlock()

	if changed {
		deliver(subs, pr)
	}
	return changed
}

func (p *Pipeline) subscribersLocked() []func(Progress) {
	out := make([]func(Progress), 0, len(p.subs))
	for _, fn := range p.subs {
		out = append(out, fn)
	}
	return out
}

func deliver(subs []func(Progress), pr Progress) {
	for _, fn := range subs {
		fn(pr)
	}
}

// IsAbandoned reports whether err came from a run that was abandoned.
func IsAbandoned(err error) bool { return errors.Is(err, ErrAbandoned) }
