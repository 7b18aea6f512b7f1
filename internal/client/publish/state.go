package publish

import "errors"

// State is a stage of the publish state machine:
//
//	Idle -> Validating -> Invalid -> Idle
//	                   -> Uploading -> Submitting -> Succeeded | Failed
type State int

const (
	Idle State = iota
	Validating
	Invalid
	Uploading
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Invalid:
		return "invalid"
	case Uploading:
		return "uploading"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether a publish run is in flight.
func (s State) Busy() bool {
	return s == Validating || s == Uploading || s == Submitting
}

var (
	ErrBusy          = errors.New("publish already in progress")
	ErrInvalidDraft  = errors.New("draft has validation errors")
	ErrAssetsPending = errors.New("attachments are still loading")
	ErrAbandoned     = errors.New("publish abandoned")
)

// Progress is the observable state of the pipeline. Uploaded and Total count
// local assets; ProjectID and Route are set once the run succeeded and Err
// once it failed.
type Progress struct {
	State     State
	Uploaded  int
	Total     int
	ProjectID int64
	Route     string
	Err       error
}
