// Package attachments implements the ordered, name-unique collections of
// binary assets attached to a project draft or one of its build steps.
//
// A Set holds three kinds of entries:
//   - local assets: bytes held in memory, uploaded on publish;
//   - linked placeholders: files that already live in object storage and
//     are only referenced (edit mode), never re-uploaded unless replaced;
//   - pending references: remote assets announced by rehydration that have
//     not been materialized yet.
//
// Binary payloads never leave this package through the serializable draft
// fields; the publish and rehydrate pipelines reach them through Snapshot,
// Resolve and Link.
package attachments

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
)

// Kind is the asset kind a Set accepts.
type Kind string

const (
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

var (
	ErrNotFound   = errors.New("asset not found")
	ErrNoPreviews = errors.New("no preview provider configured")
	ErrNameTaken  = errors.New("name already in use")
	ErrNotPending = errors.New("reference is no longer pending")
)

// Asset is a locally held binary asset.
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

func (a Asset) Size() int64 { return int64(len(a.Data)) }

// RemoteRef points at an asset already uploaded to object storage.
type RemoteRef struct {
	StorageKey  string
	Owner       string
	DisplayName string
	Size        int64
}

// Linked is a materialized placeholder for a remote file: it can be shown
// and downloaded through URL without holding the bytes.
type Linked struct {
	Ref RemoteRef
	URL string
}

func (l Linked) Name() string { return l.Ref.DisplayName }

// Entry is the display view of one item in a Set.
type Entry struct {
	Name   string
	Size   int64
	Linked bool
}

// PreviewProvider derives transient display handles (a temp file path, an
// in-memory URL) for local assets. Every acquired handle is released exactly
// once.
type PreviewProvider interface {
	Acquire(a Asset) (string, error)
	Release(handle string)
}

// DetectContentType guesses the MIME type from the file extension and falls
// back to sniffing the bytes.
func DetectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
