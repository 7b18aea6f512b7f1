package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/auth"
	"github.com/dmitrijs2005/buildlog/internal/client/client"
	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/publish"
	"github.com/dmitrijs2005/buildlog/internal/client/session"
	"github.com/dmitrijs2005/buildlog/internal/client/storage"
	"github.com/dmitrijs2005/buildlog/internal/client/validation"
)

type fakeClient struct {
	mu       sync.Mutex
	created  []api.ProjectRequest
	updated  map[int64]api.ProjectRequest
	record   *api.ProjectRecord
	cats     []api.Category
	pingErr  error
	createID int64
}

func (f *fakeClient) Categories(context.Context) ([]api.Category, error) { return f.cats, nil }

func (f *fakeClient) CreateProject(_ context.Context, req api.ProjectRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return f.createID, nil
}

func (f *fakeClient) UpdateProject(_ context.Context, id int64, req api.ProjectRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[int64]api.ProjectRequest{}
	}
	f.updated[id] = req
	return nil
}

func (f *fakeClient) GetProject(_ context.Context, id int64) (*api.ProjectRecord, error) {
	if f.record == nil || f.record.ID != id {
		return nil, client.ErrNotFound
	}
	return f.record, nil
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ storage.PutOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return key, nil
}

func (m *memStore) Get(_ context.Context, key string, _ storage.GetOptions) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memStore) URL(_ context.Context, key string, opts storage.GetOptions) (string, error) {
	return "https://files.test/" + opts.Owner + "/" + key, nil
}

type testApp struct {
	*App
	fc    *fakeClient
	store *memStore
	out   *bytes.Buffer
}

func newTestApp(t *testing.T, signedIn bool) *testApp {
	t.Helper()
	fc := &fakeClient{createID: 7}
	store := &memStore{}
	sess := session.New()
	if signedIn {
		tok, err := auth.GenerateToken("user-1", []byte("secret"), time.Hour)
		require.NoError(t, err)
		require.NoError(t, sess.SignIn(tok))
	}
	var out bytes.Buffer
	app := newApp(Deps{Client: fc, Store: store, Session: sess}, strings.NewReader(""), &out)
	t.Cleanup(app.shutdown)
	return &testApp{App: app, fc: fc, store: store, out: &out}
}

func (ta *testApp) run(t *testing.T, line string) error {
	t.Helper()
	parts := strings.Fields(line)
	cmd, ok := ta.commands()[parts[0]]
	require.True(t, ok, "unknown command %s", parts[0])
	return cmd.run(context.Background(), parts[1:])
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func stubMultiline(t *testing.T, text string) {
	t.Helper()
	orig := getMultiline
	getMultiline = func(*bufio.Reader, string, io.Writer) (string, error) { return text, nil }
	t.Cleanup(func() { getMultiline = orig })
}

func TestCommands_RequireDraft(t *testing.T) {
	ta := newTestApp(t, false)
	for _, line := range []string{"title x", "category 1", "desc", "addimage a.png", "step add", "show", "validate", "publish", "discard"} {
		assert.ErrorIs(t, ta.run(t, line), errNoDraft, line)
	}
}

func TestCommands_BuildAndPublish(t *testing.T) {
	ta := newTestApp(t, true)
	stubMultiline(t, "A cedar deck.")
	cover := writeTemp(t, "cover.png", "\x89PNG\r\n\x1a\n")
	hole := writeTemp(t, "hole.jpg", "jpeg")
	plans := writeTemp(t, "plans.pdf", "%PDF-1.4")

	for _, line := range []string{
		"new",
		"title Deck Build",
		"category 3",
		"desc",
		"addimage " + cover,
		"addfile " + plans,
		"step add",
		"step title 1 Footings",
		"step addimage 1 " + hole,
	} {
		require.NoError(t, ta.run(t, line), line)
	}

	require.NoError(t, ta.run(t, "publish"))
	ta.publishing.Wait()

	require.Len(t, ta.fc.created, 1)
	req := ta.fc.created[0]
	assert.Equal(t, "Deck Build", req.Title)
	assert.Equal(t, int64(3), req.CategoryID)
	assert.Equal(t, "user-1", req.UserID)
	require.Len(t, req.Files, 2)
	assert.Equal(t, "cover.png", req.Files[0].FileName)
	assert.True(t, req.Files[0].IsImage)
	assert.Equal(t, "plans.pdf", req.Files[1].FileName)
	require.Len(t, req.BuildSteps, 1)
	assert.Equal(t, "Footings", req.BuildSteps[0].Title)
	assert.Len(t, ta.store.objects, 3)

	assert.Equal(t, int64(7), ta.draft.ID())
	assert.Equal(t, publish.Succeeded, ta.pipeline.State())
	assert.Contains(t, ta.out.String(), "Published: /projects/7")

	// A second publish updates the now existing project.
	require.NoError(t, ta.run(t, "publish"))
	ta.publishing.Wait()
	assert.Contains(t, ta.fc.updated, int64(7))
}

func TestCommands_PublishInvalidDraft(t *testing.T) {
	ta := newTestApp(t, true)
	require.NoError(t, ta.run(t, "new"))
	require.NoError(t, ta.run(t, "step add"))

	require.NoError(t, ta.run(t, "publish"))
	ta.publishing.Wait()

	assert.Empty(t, ta.fc.created)
	out := ta.out.String()
	assert.Contains(t, out, validation.Notice)
	assert.Contains(t, out, "title is required")
	assert.Contains(t, out, "step 1: title is required")
	assert.Equal(t, validation.Notice, ta.pipeline.Notice())

	require.NoError(t, ta.run(t, "dismiss"))
	assert.Empty(t, ta.pipeline.Notice())
}

func TestCommands_PublishNeedsLogin(t *testing.T) {
	ta := newTestApp(t, false)
	assert.True(t, ta.commands()["publish"].needsLogin)
	assert.False(t, ta.isLoggedIn())
}

func TestCommands_AttachmentRules(t *testing.T) {
	ta := newTestApp(t, false)
	require.NoError(t, ta.run(t, "new"))

	notes := writeTemp(t, "notes.txt", "hello")
	assert.ErrorIs(t, ta.run(t, "addimage "+notes), errNotAnImage)

	a := writeTemp(t, "a.png", "png")
	b := writeTemp(t, "b.png", "png")
	require.NoError(t, ta.run(t, "addimage "+a))
	require.NoError(t, ta.run(t, "addimage "+b))
	assert.ErrorIs(t, ta.run(t, "addimage "+a), errDuplicate)

	require.NoError(t, ta.run(t, "mvimage 2 1"))
	assert.Equal(t, []string{"b.png", "a.png"}, ta.draft.Images().Names())
	assert.Error(t, ta.run(t, "mvimage 0 1"))
	assert.Error(t, ta.run(t, "mvimage 1 3"))

	require.NoError(t, ta.run(t, "rmimage b.png"))
	assert.Equal(t, []string{"a.png"}, ta.draft.Images().Names())
	assert.Error(t, ta.run(t, "rmimage b.png"))
}

func TestCommands_DuplicateAttachmentsAreReported(t *testing.T) {
	ta := newTestApp(t, false)
	require.NoError(t, ta.run(t, "new"))
	require.NoError(t, ta.run(t, "step add"))

	img := writeTemp(t, "hole.png", "png")
	require.NoError(t, ta.run(t, "step addimage 1 "+img))
	assert.ErrorIs(t, ta.run(t, "step addimage 1 "+img), errDuplicate)

	doc := writeTemp(t, "plans.pdf", "%PDF-1.4")
	require.NoError(t, ta.run(t, "addfile "+doc))
	assert.ErrorIs(t, ta.run(t, "addfile "+doc), errDuplicate)

	step, ok := ta.draft.Step(1)
	require.True(t, ok)
	assert.Equal(t, []string{"hole.png"}, step.Images().Names())
	assert.Equal(t, []string{"plans.pdf"}, ta.draft.Files().Names())
}

func TestCommands_Steps(t *testing.T) {
	ta := newTestApp(t, false)
	stubMultiline(t, "Dig holes.")
	require.NoError(t, ta.run(t, "new"))
	require.NoError(t, ta.run(t, "step add"))
	require.NoError(t, ta.run(t, "step add"))
	require.NoError(t, ta.run(t, "step title 2 Framing"))
	require.NoError(t, ta.run(t, "step desc 2"))

	require.NoError(t, ta.run(t, "step rm 1"))
	s, ok := ta.draft.Step(1)
	require.True(t, ok)
	assert.Equal(t, "Framing", s.Title())
	assert.False(t, s.DescriptionDoc().IsEmpty())

	assert.ErrorIs(t, ta.run(t, "step title 5 x"), draft.ErrStepNotFound)
	assert.Error(t, ta.run(t, "step"))
	assert.Error(t, ta.run(t, "step explode 1"))
}

func TestCommands_EditAndGetFile(t *testing.T) {
	ta := newTestApp(t, false)
	ta.fc.record = &api.ProjectRecord{
		ID: 12, Title: "Deck", UserID: "owner",
		Category: api.CategoryRef{ID: 3},
		Files: []api.FileRef{
			{FileName: "cover.jpg", Key: "k1", IsImage: true},
			{FileName: "plans.pdf", Key: "k2"},
		},
	}
	ta.store.objects = map[string][]byte{"k1": []byte("jpeg")}

	var fetched string
	orig := fetchToFile
	fetchToFile = func(_ context.Context, url, dest string) error {
		fetched = url + " -> " + dest
		return nil
	}
	t.Cleanup(func() { fetchToFile = orig })

	require.NoError(t, ta.run(t, "edit 12"))
	require.NoError(t, ta.job.Wait(context.Background()))

	assert.Equal(t, []string{"cover.jpg"}, ta.draft.Images().Names())
	require.NoError(t, ta.run(t, "show"))
	assert.Contains(t, ta.out.String(), "Project #12")
	assert.Contains(t, ta.out.String(), "1.plans.pdf (stored)")

	require.NoError(t, ta.run(t, "getfile plans.pdf /tmp/plans.pdf"))
	assert.Equal(t, "https://files.test/owner/k2 -> /tmp/plans.pdf", fetched)
	assert.Error(t, ta.run(t, "getfile missing.pdf /tmp/x"))

	assert.ErrorIs(t, ta.run(t, "edit 99"), client.ErrNotFound)
	assert.Error(t, ta.run(t, "edit abc"))
}

func TestCommands_LoginLogout(t *testing.T) {
	ta := newTestApp(t, false)
	tok, err := auth.GenerateToken("user-9", []byte("k"), time.Hour)
	require.NoError(t, err)

	orig := getToken
	var given []byte
	getToken = func(io.Writer) ([]byte, error) {
		given = []byte(tok)
		return given, nil
	}
	t.Cleanup(func() { getToken = orig })

	ta.fc.pingErr = client.ErrUnavailable
	require.NoError(t, ta.run(t, "login"))
	assert.True(t, ta.isLoggedIn())
	assert.Contains(t, ta.out.String(), "backend is unreachable")
	assert.Equal(t, make([]byte, len(tok)), given, "token bytes are wiped")

	require.NoError(t, ta.run(t, "logout"))
	assert.False(t, ta.isLoggedIn())

	getToken = func(io.Writer) ([]byte, error) { return []byte("garbage"), nil }
	assert.Error(t, ta.run(t, "login"))

	getToken = func(io.Writer) ([]byte, error) { return nil, errors.New("no tty") }
	assert.Error(t, ta.run(t, "login"))
}

func TestCommands_CategoriesAndStatus(t *testing.T) {
	ta := newTestApp(t, false)
	ta.fc.cats = []api.Category{{ID: 1, Name: "Outdoor", Subcategories: []api.Category{{ID: 3, Name: "Decks"}}}}

	require.NoError(t, ta.run(t, "categories"))
	assert.Contains(t, ta.out.String(), "1\tOutdoor\n  3\tDecks\n")

	require.NoError(t, ta.run(t, "status"))
	assert.Contains(t, ta.out.String(), "Publish: idle")
}

func TestCommands_Discard(t *testing.T) {
	ta := newTestApp(t, false)
	require.NoError(t, ta.run(t, "new"))
	require.NoError(t, ta.run(t, "discard"))
	assert.Nil(t, ta.draft)
}
