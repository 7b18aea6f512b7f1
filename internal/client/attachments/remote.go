package attachments

import "fmt"

// View is a read-only copy of a Set taken at one instant. The Data slices
// are shared with the set and must not be written to.
type View struct {
	Kind    Kind
	Local   []Asset
	Linked  []Linked
	Pending int
}

// Snapshot copies the current contents for the publish pipeline.
func (s *Set) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Kind:    s.kind,
		Local:   make([]Asset, len(s.local)),
		Linked:  append([]Linked(nil), s.linked...),
		Pending: len(s.pending),
	}
	for i, e := range s.local {
		v.Local[i] = e.asset
	}
	return v
}

// AddPending records remote references that still have to be materialized.
func (s *Set) AddPending(refs ...RemoteRef) {
	if len(refs) == 0 {
		return
	}
	s.mu.Lock()
	for _, r := range refs {
		s.seq++
		s.pending = append(s.pending, pendingEntry{ref: r, seq: s.seq})
	}
	hooks := s.hooksLocked(true)
	s.mu.Unlock()

	runHooks(hooks)
}

// Pending lists references still waiting for Resolve, Link or Drop.
func (s *Set) Pending() []RemoteRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RemoteRef, len(s.pending))
	for i, p := range s.pending {
		out[i] = p.ref
	}
	return out
}

// Resolve replaces a pending reference with its downloaded bytes in one
// step. It returns ErrNotPending when the reference was dropped or discarded
// meanwhile, and ErrNameTaken when the name is already used; the pending
// entry is cleared either way.
func (s *Set) Resolve(ref RemoteRef, a Asset) error {
	s.mu.Lock()
	p, ok := s.takePendingLocked(ref)
	err := s.claimLocked(ok, a.Name)
	if err == nil {
		s.insertLocked(localEntry{asset: a, seq: p.seq})
		s.primary = nil
	}
	hooks := s.hooksLocked(ok)
	s.mu.Unlock()

	runHooks(hooks)
	return err
}

// Link turns a pending file reference into a linked placeholder reachable
// through url. Errors are those of Resolve.
func (s *Set) Link(ref RemoteRef, url string) error {
	s.mu.Lock()
	_, ok := s.takePendingLocked(ref)
	err := s.claimLocked(ok, ref.DisplayName)
	if err == nil {
		s.linked = append(s.linked, Linked{Ref: ref, URL: url})
		s.primary = nil
	}
	hooks := s.hooksLocked(ok)
	s.mu.Unlock()

	runHooks(hooks)
	return err
}

func (s *Set) claimLocked(pending bool, name string) error {
	switch {
	case !pending:
		return ErrNotPending
	case name == "" || s.hasNameLocked(name):
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	return nil
}

// Drop forgets a pending reference, e.g. after its download failed.
func (s *Set) Drop(ref RemoteRef) {
	s.mu.Lock()
	_, ok := s.takePendingLocked(ref)
	hooks := s.hooksLocked(ok)
	s.mu.Unlock()

	runHooks(hooks)
}

func (s *Set) takePendingLocked(ref RemoteRef) (pendingEntry, bool) {
	for i, p := range s.pending {
		if p.ref.StorageKey == ref.StorageKey {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return p, true
		}
	}
	return pendingEntry{}, false
}
