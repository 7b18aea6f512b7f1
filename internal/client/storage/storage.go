// Package storage is the object-storage collaborator used by the publish and
// rehydrate pipelines. Objects are addressed by a storage key and laid out by
// visibility and owner: "<visibility>/<owner>/<key>".
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

const (
	BackendS3       = "s3"
	BackendSupabase = "supabase"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrNoOwner        = errors.New("owner is required for non-public objects")
)

type PutOptions struct {
	Visibility  Visibility
	ContentType string
	Owner       string
}

type GetOptions struct {
	Visibility Visibility
	Owner      string
}

// ObjectStore stores and retrieves asset bytes.
type ObjectStore interface {
	// Put stores data under key and returns the key.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (string, error)
	// Get downloads the object bytes.
	Get(ctx context.Context, key string, opts GetOptions) ([]byte, error)
	// URL returns a time-limited retrieval link for the object.
	URL(ctx context.Context, key string, opts GetOptions) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	PresignExpiry time.Duration
}

// New builds the store named by cfg.Backend.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.Backend {
	case BackendS3:
		return NewS3Store(ctx, cfg)
	case BackendSupabase:
		return NewSupabaseStore(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// NewKey returns a globally unique key for a new upload of fileName.
func NewKey(fileName string) string {
	return uuid.NewString() + "-" + fileName
}

// ObjectPath is the location of key inside the bucket. Public objects are
// shared and carry no owner segment.
func ObjectPath(vis Visibility, owner, key string) (string, error) {
	if vis == "" {
		vis = Protected
	}
	switch vis {
	case Public:
		return string(vis) + "/" + key, nil
	case Protected, Private:
		if owner == "" {
			return "", ErrNoOwner
		}
		return string(vis) + "/" + owner + "/" + key, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", vis)
	}
}

func expiryOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Minute
	}
	return d
}
