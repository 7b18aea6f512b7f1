package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/richtext"
)

const stepUsage = "usage: step add | step rm <n> | step title <n> <text> | step desc <n> | " +
	"step addimage <n> <path> | step addfile <n> <path> | step rmimage <n> <name> | step rmfile <n> <name>"

// Step dispatches the "step" sub-commands. Steps are addressed by their
// 1-based display order.
func (a *App) Step(_ context.Context, args []string) error {
	d, err := a.currentDraft()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New(stepUsage)
	}

	sub, rest := args[0], args[1:]
	if sub == "add" {
		s := d.AddStep()
		a.printf("Added step %d\n", s.Order())
		return nil
	}
	if len(rest) == 0 {
		return errors.New(stepUsage)
	}
	order, err := strconv.Atoi(rest[0])
	if err != nil {
		return fmt.Errorf("invalid step number %q", rest[0])
	}
	rest = rest[1:]

	if sub == "rm" {
		return d.RemoveStep(order)
	}
	step, ok := d.Step(order)
	if !ok {
		return fmt.Errorf("%w: %d", draft.ErrStepNotFound, order)
	}

	switch sub {
	case "title":
		step.SetTitle(strings.Join(rest, " "))
		return nil
	case "desc":
		text, err := getMultiline(a.reader, fmt.Sprintf("Step %d description", order), os.Stdout)
		if err != nil {
			return err
		}
		step.SetDescriptionDoc(richtext.FromPlainText(text))
		return nil
	case "addimage", "addfile", "rmimage", "rmfile":
		if len(rest) != 1 {
			return errors.New(stepUsage)
		}
		set := step.Files()
		if strings.HasSuffix(sub, "image") {
			set = step.Images()
		}
		if strings.HasPrefix(sub, "add") {
			return addAsset(set, rest[0])
		}
		return removeAsset(set, rest)
	default:
		return errors.New(stepUsage)
	}
}
