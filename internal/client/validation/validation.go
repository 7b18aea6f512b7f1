// Package validation checks a project draft before it may be published.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/buildlog/internal/client/draft"
	"github.com/dmitrijs2005/buildlog/internal/client/richtext"
)

// Field names used in FieldError.
const (
	FieldTitle       = "title"
	FieldCategory    = "category"
	FieldImages      = "images"
	FieldDescription = "description"
	FieldStepTitle   = "step.title"
	FieldStepImages  = "step.images"
)

const Notice = "Some fields need attention before the project can be published."

// FieldError marks one invalid field. Step is the 1-based order of the build
// step the field belongs to, or 0 for project fields.
type FieldError struct {
	Field   string
	Step    int
	Message string
}

func (e FieldError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("step %d: %s", e.Step, e.Message)
	}
	return e.Message
}

// Result is the verdict of Validate. Notice is the aggregate banner text and
// is empty when the draft is valid.
type Result struct {
	Valid  bool
	Errors []FieldError
	Notice string
}

// For returns the error recorded for field of step, if any.
func (r Result) For(field string, step int) (FieldError, bool) {
	for _, e := range r.Errors {
		if e.Field == field && e.Step == step {
			return e, true
		}
	}
	return FieldError{}, false
}

// Err joins the field errors for display. It is nil for a valid result.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Validate walks the whole draft and reports every violation. It never stops
// at the first failure: each build step is checked even when an earlier one
// failed. The only side effect is the title-invalid mark on each step, which
// is set or cleared to match the result.
func Validate(p *draft.Project) Result {
	var errs []FieldError
	f := p.Fields()

	if blank(f.Title) {
		errs = append(errs, FieldError{Field: FieldTitle, Message: "title is required"})
	}
	if f.CategoryID == 0 {
		errs = append(errs, FieldError{Field: FieldCategory, Message: "select a category"})
	}
	if p.Images().IsEmpty() {
		errs = append(errs, FieldError{Field: FieldImages, Message: "add at least one image"})
	}
	if !richtext.HasVisibleText(richtext.Decode(f.Description)) {
		errs = append(errs, FieldError{Field: FieldDescription, Message: "description is required"})
	}

	for _, s := range p.Steps() {
		sf := s.Fields()
		titleBad := blank(sf.Title)
		s.SetTitleInvalid(titleBad)
		if titleBad {
			errs = append(errs, FieldError{Field: FieldStepTitle, Step: sf.Order, Message: "title is required"})
		}
		if s.Images().IsEmpty() {
			errs = append(errs, FieldError{Field: FieldStepImages, Step: sf.Order, Message: "add at least one image"})
		}
	}

	r := Result{Valid: len(errs) == 0, Errors: errs}
	if !r.Valid {
		r.Notice = Notice
	}
	return r
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
