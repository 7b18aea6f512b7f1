package draft

import "github.com/dmitrijs2005/buildlog/internal/client/attachments"

// StepSnapshot is a read-only copy of one build step.
type StepSnapshot struct {
	StepFields
	Images attachments.View
	Files  attachments.View
}

// Snapshot is a read-only copy of a whole draft. Publishing works from a
// Snapshot so that the live draft is never touched by the pipeline.
type Snapshot struct {
	Fields
	Images attachments.View
	Files  attachments.View
	Steps  []StepSnapshot
}

// Snapshot copies the draft. Step order in the result is the current order.
func (p *Project) Snapshot() Snapshot {
	p.mu.Lock()
	snap := Snapshot{Fields: p.fields}
	steps := append([]*BuildStep(nil), p.steps...)
	fields := make([]StepFields, len(steps))
	for i, s := range steps {
		fields[i] = s.snapshotLocked()
	}
	p.mu.Unlock()

	snap.Images = p.images.Snapshot()
	snap.Files = p.files.Snapshot()
	snap.Steps = make([]StepSnapshot, len(steps))
	for i, s := range steps {
		snap.Steps[i] = StepSnapshot{
			StepFields: fields[i],
			Images:     s.images.Snapshot(),
			Files:      s.files.Snapshot(),
		}
	}
	return snap
}

// Pending counts remote references across the tree that have not been
// materialized yet.
func (s Snapshot) Pending() int {
	n := s.Images.Pending + s.Files.Pending
	for _, st := range s.Steps {
		n += st.Images.Pending + st.Files.Pending
	}
	return n
}

// LocalAssets counts the assets that would be uploaded on publish.
func (s Snapshot) LocalAssets() int {
	n := len(s.Images.Local) + len(s.Files.Local)
	for _, st := range s.Steps {
		n += len(st.Images.Local) + len(st.Files.Local)
	}
	return n
}
