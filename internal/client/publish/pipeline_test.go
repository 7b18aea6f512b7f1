package publish

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/richtext"
	"github.com/dmitrijs2005/buildlog/internal/client/storage"
	"github.com/dmitrijs2005/buildlog/internal/client/validation"
)

type fakeStore struct {
	mu      sync.Mutex
	puts    map[string]storage.PutOptions
	names   []string
	failOn  string
	block   chan struct{}
	started chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: map[string]storage.PutOptions{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) (string, error) {
	if f.started != nil {
		f.started <- key
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.failOn != "" && strings.HasSuffix(key, "-"+f.failOn) {
		return "", errors.New("storage exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[key] = opts
	f.names = append(f.names, key)
	return key, nil
}

func (f *fakeStore) Get(context.Context, string, storage.GetOptions) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeStore) URL(context.Context, string, storage.GetOptions) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type fakeBackend struct {
	mu       sync.Mutex
	created  []api.ProjectRequest
	updated  map[int64]api.ProjectRequest
	createID int64
	err      error
}

func (f *fakeBackend) CreateProject(_ context.Context, req api.ProjectRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.created = append(f.created, req)
	return f.createID, nil
}

func (f *fakeBackend) UpdateProject(_ context.Context, id int64, req api.ProjectRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.updated == nil {
		f.updated = map[int64]api.ProjectRequest{}
	}
	f.updated[id] = req
	return nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created) + len(f.updated)
}

type fakeIdentity struct {
	id  string
	err error
}

func (f fakeIdentity) UserID() (string, error) { return f.id, f.err }

func asset(name string) attachments.Asset {
	return attachments.Asset{Name: name, Data: []byte("bytes of " + name)}
}

func deckDraft() *draft.Project {
	p := draft.New(nil)
	p.SetTitle("Deck Build")
	p.SetCategory(3)
	p.Images().Add(asset("cover.jpg"))
	p.SetDescriptionDoc(richtext.FromPlainText("Cedar deck, 12x16."))
	return p
}

func newPipeline(store *fakeStore, backend *fakeBackend) *Pipeline {
	return New(Deps{
		Store:   store,
		Backend: backend,
		Session: fakeIdentity{id: "user-1"},
	})
}

func TestSubmit_EmptyDraftMakesNoNetworkCalls(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 1}
	p := newPipeline(store, backend)

	var states []State
	p.Subscribe(func(pr Progress) { states = append(states, pr.State) })

	out, err := p.Submit(context.Background(), draft.New(nil))

	require.ErrorIs(t, err, ErrInvalidDraft)
	assert.False(t, out.Validation.Valid)
	for _, f := range []string{validation.FieldTitle, validation.FieldCategory, validation.FieldImages} {
		_, ok := out.Validation.For(f, 0)
		assert.True(t, ok, f)
	}
	assert.Equal(t, 0, store.count())
	assert.Equal(t, 0, backend.calls())
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, []State{Validating, Invalid, Idle}, states)
	assert.Equal(t, validation.Notice, p.Notice())

	p.DismissNotice()
	assert.Empty(t, p.Notice())
}

func TestSubmit_SingleImageNoSteps(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 77}
	p := newPipeline(store, backend)
	d := deckDraft()

	var states []State
	p.Subscribe(func(pr Progress) {
		if len(states) == 0 || states[len(states)-1] != pr.State {
			states = append(states, pr.State)
		}
	})

	out, err := p.Submit(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, int64(77), out.ProjectID)
	assert.Equal(t, "/projects/77", out.Route)
	assert.Equal(t, 1, store.count())
	require.Len(t, backend.created, 1)

	req := backend.created[0]
	assert.Equal(t, "Deck Build", req.Title)
	assert.Equal(t, int64(3), req.CategoryID)
	assert.Equal(t, "user-1", req.UserID)
	assert.Equal(t, d.Fields().Description, req.Description)
	assert.NotNil(t, req.BuildSteps)
	assert.Empty(t, req.BuildSteps)
	require.Len(t, req.Files, 1)
	assert.Equal(t, "cover.jpg", req.Files[0].FileName)
	assert.True(t, req.Files[0].IsImage)
	assert.True(t, strings.HasSuffix(req.Files[0].Key, "-cover.jpg"))
	assert.Equal(t, int64(len("bytes of cover.jpg")), req.Files[0].Size)

	opts := store.puts[req.Files[0].Key]
	assert.Equal(t, storage.Protected, opts.Visibility)
	assert.Equal(t, "user-1", opts.Owner)
	assert.Equal(t, "image/jpeg", opts.ContentType)

	pr := p.Progress()
	assert.Equal(t, Succeeded, pr.State)
	assert.Equal(t, 1, pr.Uploaded)
	assert.Equal(t, 1, pr.Total)
	assert.Equal(t, []State{Validating, Uploading, Submitting, Succeeded}, states)
}

func TestSubmit_UploadFailureIsAllOrNothing(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 1}
	store.failOn = "b.jpg"
	p := newPipeline(store, backend)

	d := deckDraft()
	s := d.AddStep()
	s.SetTitle("Footings")
	s.Images().Add(asset("a.jpg"), asset("b.jpg"))
	before := d.Snapshot()

	_, err := p.Submit(context.Background(), d)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.jpg")
	assert.Equal(t, Failed, p.State())
	assert.Equal(t, err, p.Progress().Err)
	assert.Equal(t, 0, backend.calls())
	assert.Equal(t, before, d.Snapshot())
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, s.Images().Names())
}

func TestSubmit_RetryAfterFailure(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 5}
	store.failOn = "cover.jpg"
	p := newPipeline(store, backend)
	d := deckDraft()

	_, err := p.Submit(context.Background(), d)
	require.Error(t, err)
	require.Equal(t, Failed, p.State())

	store.failOn = ""
	out, err := p.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.ProjectID)
}

func TestSubmit_BackendFailureKeepsDraft(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{err: errors.New("502")}
	p := newPipeline(store, backend)
	d := deckDraft()

	_, err := p.Submit(context.Background(), d)

	require.Error(t, err)
	assert.Equal(t, Failed, p.State())
	assert.Equal(t, "Deck Build", d.Fields().Title)
	assert.Equal(t, []string{"cover.jpg"}, d.Images().Names())
}

func TestSubmit_UpdateReusesLinkedFiles(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{}
	p := newPipeline(store, backend)

	d := deckDraft()
	d.SetID(12)
	manual := attachments.RemoteRef{StorageKey: "old-manual.pdf", Owner: "user-1", DisplayName: "manual.pdf", Size: 42}
	d.Files().AddPending(manual)
	require.NoError(t, d.Files().Link(manual, "https://x/manual.pdf"))
	d.Files().Add(asset("bom.csv"))
	s := d.AddStep()
	s.SetTitle("Frame")
	s.Images().Add(asset("frame.jpg"))

	out, err := p.Submit(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, int64(12), out.ProjectID)
	assert.Equal(t, 3, store.count(), "linked file is not uploaded again")
	req, ok := backend.updated[12]
	require.True(t, ok)
	require.Len(t, req.Files, 3)
	assert.Equal(t, "cover.jpg", req.Files[0].FileName)
	assert.Equal(t, api.FileRef{FileName: "manual.pdf", Key: "old-manual.pdf", Size: 42}, req.Files[1])
	assert.Equal(t, "bom.csv", req.Files[2].FileName)
	assert.False(t, req.Files[2].IsImage)
	require.Len(t, req.BuildSteps, 1)
	assert.Equal(t, "Frame", req.BuildSteps[0].Title)
	require.Len(t, req.BuildSteps[0].Files, 1)
	assert.Equal(t, "frame.jpg", req.BuildSteps[0].Files[0].FileName)
}

func TestSubmit_StepsSentInCurrentOrder(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 1}
	p := newPipeline(store, backend)
	d := deckDraft()
	for _, title := range []string{"one", "two", "three"} {
		s := d.AddStep()
		s.SetTitle(title)
		s.Images().Add(asset(title + ".jpg"))
	}
	require.NoError(t, d.RemoveStep(2))

	_, err := p.Submit(context.Background(), d)
	require.NoError(t, err)

	req := backend.created[0]
	require.Len(t, req.BuildSteps, 2)
	assert.Equal(t, "one", req.BuildSteps[0].Title)
	assert.Equal(t, "three", req.BuildSteps[1].Title)
	assert.Equal(t, "three.jpg", req.BuildSteps[1].Files[0].FileName)
}

func TestSubmit_PendingAssetsFail(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 1}
	p := newPipeline(store, backend)
	d := deckDraft()
	d.Images().AddPending(attachments.RemoteRef{StorageKey: "k", DisplayName: "late.jpg"})

	_, err := p.Submit(context.Background(), d)

	require.ErrorIs(t, err, ErrAssetsPending)
	assert.Equal(t, Failed, p.State())
	assert.Equal(t, 0, store.count())
}

func TestSubmit_NotSignedIn(t *testing.T) {
	signedOut := errors.New("not signed in")
	p := New(Deps{Store: newFakeStore(), Backend: &fakeBackend{}, Session: fakeIdentity{err: signedOut}})

	_, err := p.Submit(context.Background(), deckDraft())
	require.ErrorIs(t, err, signedOut)
	assert.Equal(t, Failed, p.State())
}

func TestSubmit_GatedWhileInFlight(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 9}
	store.block = make(chan struct{})
	store.started = make(chan string, 1)
	p := newPipeline(store, backend)
	d := deckDraft()

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), d)
		done <- err
	}()
	<-store.started

	_, err := p.Submit(context.Background(), d)
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, p.Reset(), ErrBusy)

	close(store.block)
	require.NoError(t, <-done)
	assert.Len(t, backend.created, 1)

	_, err = p.Submit(context.Background(), d)
	require.ErrorIs(t, err, ErrBusy, "succeeded needs a reset")
	require.NoError(t, p.Reset())
	assert.Equal(t, Idle, p.State())
}

func TestAbandon_CancelsUploads(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 9}
	store.block = make(chan struct{})
	store.started = make(chan string, 4)
	p := newPipeline(store, backend)
	d := deckDraft()

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), d)
		done <- err
	}()
	<-store.started

	p.Abandon()
	assert.Equal(t, Idle, p.State())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrAbandoned)
		assert.True(t, IsAbandoned(err))
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return after abandon")
	}
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, backend.calls())
}

func TestAbandon_IdleIsNoop(t *testing.T) {
	p := newPipeline(newFakeStore(), &fakeBackend{})
	p.Abandon()
	assert.Equal(t, Idle, p.State())
}

func TestSubmit_UploadsRunConcurrently(t *testing.T) {
	store, backend := newFakeStore(), &fakeBackend{createID: 1}
	store.block = make(chan struct{})
	store.started = make(chan string, 8)
	p := New(Deps{Store: store, Backend: backend, Session: fakeIdentity{id: "u"}, Concurrency: 3})

	d := deckDraft()
	d.Images().Add(asset("two.jpg"), asset("three.jpg"))

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), d)
		done <- err
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-store.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d uploads started", i)
		}
	}
	assert.Equal(t, Uploading, p.State())
	close(store.block)
	require.NoError(t, <-done)

	req := backend.created[0]
	require.Len(t, req.Files, 3)
	assert.Equal(t, "cover.jpg", req.Files[0].FileName)
	assert.Equal(t, "two.jpg", req.Files[1].FileName)
	assert.Equal(t, "three.jpg", req.Files[2].FileName)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uploading", Uploading.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, Submitting.Busy())
	assert.False(t, Failed.Busy())
}
