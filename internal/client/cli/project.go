package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/publish"
	"github.com/dmitrijs2005/buildlog/internal/client/richtext"
	"github.com/dmitrijs2005/buildlog/internal/client/validation"
)

// getMultiline is an indirection over GetMultiline for tests.
var getMultiline = GetMultiline

// replaceDraft closes the current draft and resets a finished pipeline. It
// refuses while a publish is running.
func (a *App) replaceDraft() error {
	if a.pipeline.State().Busy() {
		return publish.ErrBusy
	}
	if err := a.pipeline.Reset(); err != nil {
		return err
	}
	a.closeDraft()
	return nil
}

func (a *App) New(ctx context.Context, _ []string) error {
	if err := a.replaceDraft(); err != nil {
		return err
	}
	a.draft = draft.New(a.previewProvider())
	a.printf("Started a new project draft\n")
	return nil
}

// Edit reopens project <id>. The draft is usable right away; its
// attachments are materialized in the background.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: edit <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid project id %q", args[0])
	}
	if err := a.replaceDraft(); err != nil {
		return err
	}

	job, err := a.loader.Start(ctx, id)
	if err != nil {
		return err
	}
	a.draft, a.job = job.Draft, job
	a.printf("Opened project #%d (%d attachments loading)\n", id, job.Total())
	return nil
}

func (a *App) Title(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	d.SetTitle(strings.Join(args, " "))
	return nil
}

func (a *App) Category(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: category <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 0 {
		return fmt.Errorf("invalid category id %q", args[0])
	}
	d.SetCategory(id)
	return nil
}

func (a *App) Description(_ context.Context, _ []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	text, err := getMultiline(a.reader, "Project description", os.Stdout)
	if err != nil {
		return err
	}
	d.SetDescriptionDoc(richtext.FromPlainText(text))
	return nil
}

func (a *App) Categories(ctx context.Context, _ []string) error {
	cats, err := a.client.Categories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		a.printf("%d\t%s\n", c.ID, c.Name)
		for _, sub := range c.Subcategories {
			a.printf("  %d\t%s\n", sub.ID, sub.Name)
		}
	}
	return nil
}

func (a *App) Show(_ context.Context, _ []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	f := d.Fields()

	var b strings.Builder
	if f.ID != 0 {
		fmt.Fprintf(&b, "Project #%d\n", f.ID)
	} else {
		b.WriteString("New project\n")
	}
	fmt.Fprintf(&b, "Title:    %s\n", f.Title)
	fmt.Fprintf(&b, "Category: %d\n", f.CategoryID)
	writeText(&b, "", richtext.PlainText(d.DescriptionDoc()))
	writeSet(&b, "", "Images", d.Images())
	writeSet(&b, "", "Files", d.Files())
	for _, s := range d.Steps() {
		sf := s.Fields()
		mark := ""
		if sf.TitleInvalid {
			mark = " (title required)"
		}
		fmt.Fprintf(&b, "Step %d: %s%s\n", sf.Order, sf.Title, mark)
		writeText(&b, "  ", richtext.PlainText(s.DescriptionDoc()))
		writeSet(&b, "  ", "Images", s.Images())
		writeSet(&b, "  ", "Files", s.Files())
	}
	if a.job != nil {
		select {
		case <-a.job.Done():
		default:
			b.WriteString("Attachments are still loading\n")
		}
	}
	a.printf("%s", b.String())
	return nil
}

func writeText(b *strings.Builder, indent, text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "%s| %s\n", indent, line)
	}
}

func writeSet(b *strings.Builder, indent, label string, s *attachments.Set) {
	v := s.Snapshot()
	fmt.Fprintf(b, "%s%s:", indent, label)
	for i, e := range s.Entries() {
		suffix := ""
		if e.Linked {
			suffix = " (stored)"
		}
		fmt.Fprintf(b, " %d.%s%s", i+1, e.Name, suffix)
	}
	if v.Pending > 0 {
		fmt.Fprintf(b, " +%d loading", v.Pending)
	}
	b.WriteString("\n")
}

func (a *App) Validate(_ context.Context, _ []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	res := validation.Validate(d)
	if res.Valid {
		a.printf("Draft is valid\n")
		return nil
	}
	a.printf("%s\n", res.Notice)
	for _, fe := range res.Errors {
		a.printf("  %s: %s\n", fe.Field, fe.Error())
	}
	return nil
}

func (a *App) Discard(_ context.Context, _ []string) error {
	if a.draft == nil {
		return errNoDraft
	}
	if err := a.replaceDraft(); err != nil {
		return err
	}
	a.printf("Draft discarded\n")
	return nil
}
