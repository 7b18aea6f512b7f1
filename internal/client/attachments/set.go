package attachments

import (
	"errors"
	"fmt"
	"sync"
)

type localEntry struct {
	asset Asset
	seq   int64
}

type pendingEntry struct {
	ref RemoteRef
	seq int64
}

// Set is an ordered collection of assets of one Kind. It is safe for
// concurrent use: rehydration resolves pending references from several
// goroutines while the owner keeps reading it.
type Set struct {
	kind     Kind
	previews PreviewProvider

	mu      sync.Mutex
	seq     int64
	local   []localEntry
	linked  []Linked
	pending []pendingEntry
	handles map[string]string
	primary *Entry
	hooks   []func()
}

// NewSet returns an empty set of the given kind. previews may be nil.
func NewSet(kind Kind, previews PreviewProvider) *Set {
	return &Set{kind: kind, previews: previews, handles: make(map[string]string)}
}

// Kind reports whether the set holds images or files.
func (s *Set) Kind() Kind { return s.kind }

// OnChange registers fn to run after every mutation. Hooks run outside the
// set's lock.
func (s *Set) OnChange(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Add appends assets in order and returns the resulting number of entries.
// An asset whose name is already present (or empty) is dropped; the existing
// entry wins.
func (s *Set) Add(assets ...Asset) int {
	s.mu.Lock()
	added := 0
	for _, a := range assets {
		if a.Name == "" || s.hasNameLocked(a.Name) {
			continue
		}
		s.seq++
		s.local = append(s.local, localEntry{asset: a, seq: s.seq})
		added++
	}
	n := s.lenLocked()
	if added > 0 {
		s.primary = nil
	}
	hooks := s.hooksLocked(added > 0)
	s.mu.Unlock()

	runHooks(hooks)
	return n
}

// AddUnique appends a single asset and returns ErrNameTaken when an entry
// with its name already exists.
func (s *Set) AddUnique(a Asset) error {
	if a.Name == "" {
		return errors.New("asset name is empty")
	}
	s.mu.Lock()
	if s.hasNameLocked(a.Name) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNameTaken, a.Name)
	}
	s.seq++
	s.local = append(s.local, localEntry{asset: a, seq: s.seq})
	s.primary = nil
	hooks := s.hooksLocked(true)
	s.mu.Unlock()

	runHooks(hooks)
	return nil
}

// Remove deletes the local asset or linked placeholder with that name and
// releases its preview handle. Missing names are ignored.
func (s *Set) Remove(name string) {
	s.mu.Lock()
	removed := false
	for i, e := range s.local {
		if e.asset.Name == name {
			s.local = append(s.local[:i], s.local[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		for i, l := range s.linked {
			if l.Name() == name {
				s.linked = append(s.linked[:i], s.linked[i+1:]...)
				removed = true
				break
			}
		}
	}
	handle, hadHandle := s.handles[name]
	delete(s.handles, name)
	if removed {
		s.primary = nil
	}
	hooks := s.hooksLocked(removed)
	s.mu.Unlock()

	if hadHandle {
		s.previews.Release(handle)
	}
	runHooks(hooks)
}

// Reorder moves the local asset at from to position to, keeping the relative
// order of the rest. Only image sets can be reordered; calling it on a file
// set or with an index out of range is a programming error and panics.
func (s *Set) Reorder(from, to int) {
	if s.kind != KindImage {
		panic(fmt.Sprintf("attachments: reorder on %s set", s.kind))
	}

	s.mu.Lock()
	n := len(s.local)
	if from < 0 || from >= n || to < 0 || to >= n {
		s.mu.Unlock()
		panic(fmt.Sprintf("attachments: reorder %d -> %d out of range [0,%d)", from, to, n))
	}
	if from == to {
		s.mu.Unlock()
		return
	}
	e := s.local[from]
	s.local = append(s.local[:from], s.local[from+1:]...)
	s.local = append(s.local[:to], append([]localEntry{e}, s.local[to:]...)...)
	s.primary = nil
	hooks := s.hooksLocked(true)
	s.mu.Unlock()

	runHooks(hooks)
}

// IsEmpty reports whether the set has no local assets, no linked
// placeholders and no pending remote references.
func (s *Set) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenLocked() == 0 && len(s.pending) == 0
}

// Len counts local assets and linked placeholders.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenLocked()
}

// Entries lists local assets in order followed by linked placeholders.
func (s *Set) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, s.lenLocked())
	for _, e := range s.local {
		out = append(out, Entry{Name: e.asset.Name, Size: e.asset.Size()})
	}
	for _, l := range s.linked {
		out = append(out, Entry{Name: l.Name(), Size: l.Ref.Size, Linked: true})
	}
	return out
}

// Names lists entry names in Entries order.
func (s *Set) Names() []string {
	entries := s.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Primary returns the entry shown as the main preview. The result is cached
// until the next mutation.
func (s *Set) Primary() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primary != nil {
		return *s.primary, true
	}
	var e Entry
	switch {
	case len(s.local) > 0:
		a := s.local[0].asset
		e = Entry{Name: a.Name, Size: a.Size()}
	case len(s.linked) > 0:
		l := s.linked[0]
		e = Entry{Name: l.Name(), Size: l.Ref.Size, Linked: true}
	default:
		return Entry{}, false
	}
	s.primary = &e
	return e, true
}

// Preview returns a display handle for the named entry, acquiring one on the
// first call. Linked placeholders use their retrieval URL.
func (s *Set) Preview(name string) (string, error) {
	s.mu.Lock()
	if h, ok := s.handles[name]; ok {
		s.mu.Unlock()
		return h, nil
	}
	for _, l := range s.linked {
		if l.Name() == name {
			s.mu.Unlock()
			return l.URL, nil
		}
	}
	asset, ok := s.localLocked(name)
	s.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if s.previews == nil {
		return "", ErrNoPreviews
	}

	h, err := s.previews.Acquire(asset)
	if err != nil {
		return "", fmt.Errorf("acquire preview: %w", err)
	}

	s.mu.Lock()
	existing, raced := s.handles[name]
	_, still := s.localLocked(name)
	if !raced && still {
		s.handles[name] = h
	}
	s.mu.Unlock()

	switch {
	case raced:
		s.previews.Release(h)
		return existing, nil
	case !still:
		s.previews.Release(h)
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return h, nil
}

// Discard releases every preview handle and empties the set.
func (s *Set) Discard() {
	s.mu.Lock()
	handles := make([]string, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[string]string)
	changed := s.lenLocked() > 0 || len(s.pending) > 0
	s.local, s.linked, s.pending = nil, nil, nil
	s.primary = nil
	hooks := s.hooksLocked(changed)
	s.mu.Unlock()

	for _, h := range handles {
		s.previews.Release(h)
	}
	runHooks(hooks)
}

func (s *Set) hasNameLocked(name string) bool {
	if _, ok := s.localLocked(name); ok {
		return true
	}
	for _, l := range s.linked {
		if l.Name() == name {
			return true
		}
	}
	return false
}

func (s *Set) localLocked(name string) (Asset, bool) {
	for _, e := range s.local {
		if e.asset.Name == name {
			return e.asset, true
		}
	}
	return Asset{}, false
}

func (s *Set) lenLocked() int {
	return len(s.local) + len(s.linked)
}

func (s *Set) hooksLocked(changed bool) []func() {
	if !changed || len(s.hooks) == 0 {
		return nil
	}
	return append([]func(){}, s.hooks...)
}

func runHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}

// insertLocked places e before the first local entry with a larger sequence
// number so resolved downloads keep the order of the remote record.
func (s *Set) insertLocked(e localEntry) {
	at := len(s.local)
	for i, x := range s.local {
		if x.seq > e.seq {
			at = i
			break
		}
	}
	s.local = append(s.local, localEntry{})
	copy(s.local[at+1:], s.local[at:])
	s.local[at] = e
}
