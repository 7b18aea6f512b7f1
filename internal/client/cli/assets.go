package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/filex"
	"github.com/dmitrijs2005/buildlog/internal/netx"
)

var (
	errNotAnImage = errors.New("not an image")
	errDuplicate  = errors.New("an attachment with this name already exists")
)

// readAsset is a test seam for filex.ReadAsset.
var readAsset = filex.ReadAsset

// fetchToFile is a test seam for netx.FetchToFile.
var fetchToFile = netx.FetchToFile

func (a *App) AddImage(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: addimage <path>")
	}
	return addAsset(d.Images(), args[0])
}

func (a *App) AddFile(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: addfile <path>")
	}
	return addAsset(d.Files(), args[0])
}

func (a *App) RemoveImage(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	return removeAsset(d.Images(), args)
}

func (a *App) RemoveFile(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	return removeAsset(d.Files(), args)
}

// MoveImage moves the local image at 1-based position from to position to.
// Stored images are not reorderable.
func (a *App) MoveImage(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return errors.New("usage: mvimage <from> <to>")
	}
	return moveAsset(d.Images(), args[0], args[1])
}

// GetFile downloads a stored file of the draft, searching the project files
// first and then every step, to dest.
func (a *App) GetFile(ctx context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return errors.New("usage: getfile <name> <dest>")
	}
	name, dest := args[0], args[1]

	sets := []*attachments.Set{d.Files(), d.Images()}
	for _, s := range d.Steps() {
		sets = append(sets, s.Files(), s.Images())
	}
	for _, s := range sets {
		for _, l := range s.Snapshot().Linked {
			if l.Name() != name {
				continue
			}
			if err := fetchToFile(ctx, l.URL, dest); err != nil {
				return fmt.Errorf("download %s: %w", name, err)
			}
			a.printf("Saved %s to %s\n", name, dest)
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a stored file", attachments.ErrNotFound, name)
}

func addAsset(set *attachments.Set, path string) error {
	asset, err := readAsset(filepath.Clean(path))
	if err != nil {
		return err
	}
	if set.Kind() == attachments.KindImage && !strings.HasPrefix(asset.ContentType, "image/") {
		return fmt.Errorf("%w: %s is %s", errNotAnImage, asset.Name, asset.ContentType)
	}
	if err := set.AddUnique(asset); err != nil {
		if errors.Is(err, attachments.ErrNameTaken) {
			return fmt.Errorf("%w: %s", errDuplicate, asset.Name)
		}
		return err
	}
	return nil
}

func removeAsset(set *attachments.Set, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm<kind> <name>")
	}
	for _, n := range set.Names() {
		if n == args[0] {
			set.Remove(n)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", attachments.ErrNotFound, args[0])
}

func moveAsset(set *attachments.Set, fromArg, toArg string) error {
	from, err1 := strconv.Atoi(fromArg)
	to, err2 := strconv.Atoi(toArg)
	n := len(set.Snapshot().Local)
	if err1 != nil || err2 != nil || from < 1 || to < 1 || from > n || to > n {
		return fmt.Errorf("positions must be between 1 and %d", n)
	}
	set.Reorder(from-1, to-1)
	return nil
}
