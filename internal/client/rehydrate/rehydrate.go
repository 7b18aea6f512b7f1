// Package rehydrate rebuilds an editable draft from a published project.
//
// The record is mapped synchronously; its assets are then materialized in
// the background. Images are downloaded into local assets, other files only
// get a retrieval link. A failed download is logged and skipped, it never
// aborts the rest of the tree.
package rehydrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/richtext"
	"github.com/dmitrijs2005/buildlog/internal/client/storage"
	"github.com/dmitrijs2005/buildlog/internal/logging"
)

const DefaultConcurrency = 4

type Backend interface {
	GetProject(ctx context.Context, id int64) (*api.ProjectRecord, error)
}

type Deps struct {
	Backend     Backend
	Store       storage.ObjectStore
	Logger      logging.Logger
	Previews    attachments.PreviewProvider
	Concurrency int
}

type Loader struct {
	deps Deps
}

func NewLoader(deps Deps) *Loader {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}
	return &Loader{deps: deps}
}

// Job tracks the background materialization of one rehydrated draft.
type Job struct {
	Draft *draft.Project

	cancel  context.CancelFunc
	done    chan struct{}
	skipped atomic.Int64
	total   int
}

// Done is closed once every asset has been resolved, linked or skipped.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job is done or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops outstanding downloads; their assets are skipped.
func (j *Job) Cancel() { j.cancel() }

// Skipped counts assets that could not be materialized.
func (j *Job) Skipped() int { return int(j.skipped.Load()) }

// Total counts remote assets the record referenced.
func (j *Job) Total() int { return j.total }

// Start fetches project id and returns as soon as the draft is mapped. The
// downloads run on ctx, so it must outlive the call.
func (l *Loader) Start(ctx context.Context, id int64) (*Job, error) {
	rec, err := l.deps.Backend.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch project %d: %w", id, err)
	}

	log := l.deps.Logger.With("project", id)
	if _, err := richtext.DecodeStrict(rec.Description); err != nil {
		log.Warn(ctx, "description replaced with empty text", "error", err)
	}

	d := MapRecord(rec, l.deps.Previews)

	jctx, cancel := context.WithCancel(ctx)
	job := &Job{Draft: d, cancel: cancel, done: make(chan struct{})}

	var g errgroup.Group
	g.SetLimit(l.deps.Concurrency)

	sets := []*attachments.Set{d.Images(), d.Files()}
	for _, s := range d.Steps() {
		sets = append(sets, s.Images(), s.Files())
	}
	var jobs []func() error
	for _, set := range sets {
		for _, ref := range set.Pending() {
			jobs = append(jobs, l.materialize(jctx, log, job, set, ref))
		}
	}
	job.total = len(jobs)

	go func() {
		defer close(job.done)
		defer cancel()
		for _, fn := range jobs {
			g.Go(fn)
		}
		_ = g.Wait()
		log.Info(jctx, "project rehydrated", "assets", job.total, "skipped", job.Skipped())
	}()

	return job, nil
}

// Load is Start followed by Wait.
func (l *Loader) Load(ctx context.Context, id int64) (*Job, error) {
	job, err := l.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := job.Wait(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

func (l *Loader) materialize(ctx context.Context, log logging.Logger, job *Job, set *attachments.Set, ref attachments.RemoteRef) func() error {
	opts := storage.GetOptions{Visibility: storage.Protected, Owner: ref.Owner}
	skip := func(err error) error {
		if errors.Is(err, attachments.ErrNotPending) {
			log.Info(ctx, "asset no longer needed", "key", ref.StorageKey, "name", ref.DisplayName)
		} else {
			log.Warn(ctx, "asset skipped", "key", ref.StorageKey, "name", ref.DisplayName, "error", err)
		}
		set.Drop(ref)
		job.skipped.Add(1)
		return nil
	}

	if set.Kind() == attachments.KindImage {
		return func() error {
			data, err := l.deps.Store.Get(ctx, ref.StorageKey, opts)
			if err != nil {
				return skip(err)
			}
			a := attachments.Asset{
				Name:        ref.DisplayName,
				ContentType: attachments.DetectContentType(ref.DisplayName, data),
				Data:        data,
			}
			if err := set.Resolve(ref, a); err != nil {
				return skip(err)
			}
			return nil
		}
	}

	return func() error {
		url, err := l.deps.Store.URL(ctx, ref.StorageKey, opts)
		if err != nil {
			return skip(err)
		}
		if err := set.Link(ref, url); err != nil {
			return skip(err)
		}
		return nil
	}
}

// MapRecord copies rec into a new draft. Asset references are left pending
// on their sets; descriptions are normalized through the rich text codec and
// build steps are ordered by their recorded order.
func MapRecord(rec *api.ProjectRecord, previews attachments.PreviewProvider) *draft.Project {
	d := draft.New(previews)
	d.SetID(rec.ID)
	d.SetTitle(rec.Title)
	d.SetCategory(rec.Category.ID)
	d.SetDescription(normalize(rec.Description))
	addPending(d.Images(), d.Files(), rec.Files, rec.UserID)

	steps := append([]api.BuildStepRecord(nil), rec.BuildSteps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	for _, sr := range steps {
		s := d.AddStep()
		s.SetID(sr.ID)
		s.SetTitle(sr.Title)
		s.SetDescription(normalize(sr.Description))
		addPending(s.Images(), s.Files(), sr.Files, rec.UserID)
	}
	return d
}

func addPending(images, files *attachments.Set, refs []api.FileRef, owner string) {
	var imgs, other []attachments.RemoteRef
	for _, f := range refs {
		r := attachments.RemoteRef{StorageKey: f.Key, Owner: owner, DisplayName: f.FileName, Size: f.Size}
		if f.IsImage {
			imgs = append(imgs, r)
		} else {
			other = append(other, r)
		}
	}
	images.AddPending(imgs...)
	files.AddPending(other...)
}

func normalize(payload string) string {
	return richtext.Encode(richtext.Decode(payload))
}
