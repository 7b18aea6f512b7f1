package publish

import (
	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
	"github.com/dmitrijs2005/buildlog/internal/client/draft"
)

// SetUploads holds the references produced for the local assets of one
// attachment set, in set order.
type SetUploads struct {
	Images []api.FileRef
	Files  []api.FileRef
}

// Uploads mirrors the shape of a draft snapshot: one SetUploads for the
// project and one per build step, in step order.
type Uploads struct {
	Project SetUploads
	Steps   []SetUploads
}

func newUploads(snap draft.Snapshot) *Uploads {
	u := &Uploads{
		Project: SetUploads{
			Images: make([]api.FileRef, len(snap.Images.Local)),
			Files:  make([]api.FileRef, len(snap.Files.Local)),
		},
		Steps: make([]SetUploads, len(snap.Steps)),
	}
	for i, s := range snap.Steps {
		u.Steps[i] = SetUploads{
			Images: make([]api.FileRef, len(s.Images.Local)),
			Files:  make([]api.FileRef, len(s.Files.Local)),
		}
	}
	return u
}

// BuildPayload assembles the create/update body. Within every attachment
// set, already linked files come first followed by the freshly uploaded
// assets; images precede files.
func BuildPayload(snap draft.Snapshot, up *Uploads, userID string) api.ProjectRequest {
	req := api.ProjectRequest{
		Title:       snap.Title,
		Description: snap.Description,
		CategoryID:  snap.CategoryID,
		UserID:      userID,
		Files:       collect(snap.Images, snap.Files, up.Project),
		BuildSteps:  make([]api.BuildStepRequest, 0, len(snap.Steps)),
	}
	for i, s := range snap.Steps {
		req.BuildSteps = append(req.BuildSteps, api.BuildStepRequest{
			Title:       s.Title,
			Description: s.Description,
			Files:       collect(s.Images, s.Files, up.Steps[i]),
		})
	}
	return req
}

func collect(images, files attachments.View, up SetUploads) []api.FileRef {
	out := make([]api.FileRef, 0, len(images.Linked)+len(up.Images)+len(files.Linked)+len(up.Files))
	out = appendLinked(out, images)
	out = append(out, up.Images...)
	out = appendLinked(out, files)
	out = append(out, up.Files...)
	return out
}

func appendLinked(out []api.FileRef, v attachments.View) []api.FileRef {
	for _, l := range v.Linked {
		out = append(out, api.FileRef{
			FileName: l.Ref.DisplayName,
			Key:      l.Ref.StorageKey,
			IsImage:  v.Kind == attachments.KindImage,
			Size:     l.Ref.Size,
		})
	}
	return out
}
