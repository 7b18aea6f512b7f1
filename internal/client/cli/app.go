package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/client"
	"github.com/dmitrijs2005/buildlog/internal/client/config"
	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/publish"
	"github.com/dmitrijs2005/buildlog/internal/client/rehydrate"
	"github.com/dmitrijs2005/buildlog/internal/client/session"
	"github.com/dmitrijs2005/buildlog/internal/client/storage"
	"github.com/dmitrijs2005/buildlog/internal/filex"
	"github.com/dmitrijs2005/buildlog/internal/logging"
)

var errNoDraft = errors.New("no draft open; use 'new' or 'edit <id>'")

// Deps are the collaborators an App drives.
type Deps struct {
	Client      client.Client
	Store       storage.ObjectStore
	Session     *session.Session
	Previews    *filex.TempPreviews
	Logger      logging.Logger
	Concurrency int
}

type App struct {
	client   client.Client
	store    storage.ObjectStore
	session  *session.Session
	previews *filex.TempPreviews
	log      logging.Logger

	pipeline *publish.Pipeline
	loader   *rehydrate.Loader

	draft *draft.Project
	job   *rehydrate.Job

	reader *bufio.Reader
	outMu  sync.Mutex
	out    io.Writer

	publishing sync.WaitGroup
}

// NewApp builds the production App from cfg.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	previews, err := filex.NewTempPreviews()
	if err != nil {
		return nil, err
	}

	sess := session.New()
	return newApp(Deps{
		Client:      client.NewHTTPClient(cfg.BackendURL, sess, cfg.RequestTimeout),
		Store:       store,
		Session:     sess,
		Previews:    previews,
		Logger:      log,
		Concurrency: cfg.UploadConcurrency,
	}, os.Stdin, os.Stdout), nil
}

func newApp(d Deps, in io.Reader, out io.Writer) *App {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Session == nil {
		d.Session = session.New()
	}
	a := &App{
		client:   d.Client,
		store:    d.Store,
		session:  d.Session,
		previews: d.Previews,
		log:      d.Logger,
		reader:   bufio.NewReader(in),
		out:      out,
	}
	a.pipeline = publish.New(publish.Deps{
		Store:       d.Store,
		Backend:     d.Client,
		Session:     d.Session,
		Logger:      d.Logger.With("component", "publish"),
		Concurrency: d.Concurrency,
	})
	a.loader = rehydrate.NewLoader(rehydrate.Deps{
		Backend:     d.Client,
		Store:       d.Store,
		Logger:      d.Logger.With("component", "rehydrate"),
		Previews:    a.previewProvider(),
		Concurrency: d.Concurrency,
	})
	return a
}

// Run starts the REPL on the App's input and blocks until the user exits or
// the input ends. Background work is stopped before it returns.
func (a *App) Run(ctx context.Context) {
	defer a.shutdown()

	a.printf("BuildLog CLI (type 'help' for commands)\n")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) shutdown() {
	a.pipeline.Abandon()
	a.publishing.Wait()
	a.closeDraft()
	if a.previews != nil {
		_ = a.previews.Close()
	}
}

func (a *App) isLoggedIn() bool { return a.session.SignedIn() }

func (a *App) status() string {
	s := ""
	if id, err := a.session.UserID(); err == nil {
		s = id
	}
	if a.draft != nil {
		if s != "" {
			s += " "
		}
		if id := a.draft.ID(); id != 0 {
			s += fmt.Sprintf("project #%d", id)
		} else {
			s += "new project"
		}
	}
	if st := a.pipeline.State(); st != publish.Idle {
		s += " " + st.String()
	}
	if s != "" {
		s = "(" + s + ")"
	}
	return s
}

func (a *App) currentDraft() (*draft.Project, error) {
	if a.draft == nil {
		return nil, errNoDraft
	}
	return a.draft, nil
}

func (a *App) closeDraft() {
	if a.job != nil {
		a.job.Cancel()
		a.job = nil
	}
	if a.draft != nil {
		a.draft.Discard()
		a.draft = nil
	}
}

func (a *App) previewProvider() attachments.PreviewProvider {
	if a.previews == nil {
		return nil
	}
	return a.previews
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
