package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/buildlog/internal/client/publish"
)

// Publish validates the open draft and, when valid, publishes it in the
// background. Validation problems are printed right away.
func (a *App) Publish(ctx context.Context, _ []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	if a.pipeline.State() == publish.Succeeded {
		if err := a.pipeline.Reset(); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	started := make(chan struct{})
	cancel := a.pipeline.Subscribe(func(p publish.Progress) {
		if p.State == publish.Uploading || p.State == publish.Submitting {
			select {
			case <-started:
			default:
				close(started)
			}
		}
	})

	var out publish.Outcome
	var runErr error
	a.publishing.Add(1)
	go func() {
		defer a.publishing.Done()
		defer close(done)
		defer cancel()

		out, runErr = a.pipeline.Submit(ctx, d)
		switch {
		case runErr == nil:
			d.SetID(out.ProjectID)
			a.printf("Published: %s\n", out.Route)
		case errors.Is(runErr, publish.ErrInvalidDraft), publish.IsAbandoned(runErr), errors.Is(runErr, publish.ErrBusy):
		default:
			a.printf("Publish failed: %v (draft kept, run 'publish' to retry)\n", runErr)
		}
	}()

	select {
	case <-started:
		a.printf("Publishing in the background; use 'status' to follow it\n")
		return nil
	case <-done:
	}

	if errors.Is(runErr, publish.ErrInvalidDraft) {
		a.printf("%s\n", out.Validation.Notice)
		for _, fe := range out.Validation.Errors {
			a.printf("  %s: %s\n", fe.Field, fe.Error())
		}
		return nil
	}
	if errors.Is(runErr, publish.ErrBusy) {
		return runErr
	}
	return nil
}

func (a *App) Status(_ context.Context, _ []string) error {
	p := a.pipeline.Progress()
	a.printf("Publish: %s", p.State)
	switch p.State {
	case publish.Uploading, publish.Submitting:
		a.printf(" (%d/%d uploaded)", p.Uploaded, p.Total)
	case publish.Succeeded:
		a.printf(" %s", p.Route)
	case publish.Failed:
		a.printf(": %v", p.Err)
	}
	a.printf("\n")

	if n := a.pipeline.Notice(); n != "" {
		a.printf("%s (type 'dismiss' to hide)\n", n)
	}
	if a.job != nil {
		select {
		case <-a.job.Done():
			if k := a.job.Skipped(); k > 0 {
				a.printf("Attachments: %d of %d could not be loaded\n", k, a.job.Total())
			}
		default:
			a.printf("Attachments: loading\n")
		}
	}
	return nil
}

func (a *App) Abandon(_ context.Context, _ []string) error {
	if !a.pipeline.State().Busy() {
		a.printf("Nothing to abandon\n")
		return nil
	}
	a.pipeline.Abandon()
	a.printf("Publish abandoned\n")
	return nil
}

func (a *App) Dismiss(_ context.Context, _ []string) error {
	a.pipeline.DismissNotice()
	return nil
}
