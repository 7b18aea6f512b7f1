package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

type supabaseAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	DownloadFile(bucketID, filePath string, opts ...storage_go.UrlOptions) ([]byte, error)
	CreateSignedUrl(bucketID, filePath string, expiresIn int) (storage_go.SignedUrlResponse, error)
}

var newSupabaseClient = func(url, key string) supabaseAPI {
	return storage_go.NewClient(strings.TrimRight(url, "/")+"/storage/v1", key, nil)
}

// SupabaseStore keeps objects in a Supabase storage bucket.
type SupabaseStore struct {
	api    supabaseAPI
	bucket string
	expiry time.Duration

	// The client sets upload headers on a transport shared by all requests,
	// so uploads must not overlap.
	uploadMu sync.Mutex
}

func NewSupabaseStore(cfg Config) *SupabaseStore {
	return &SupabaseStore{
		api:    newSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey),
		bucket: cfg.SupabaseBucket,
		expiry: expiryOrDefault(cfg.PresignExpiry),
	}
}

func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (string, error) {
	path, err := ObjectPath(opts.Visibility, opts.Owner, key)
	if err != nil {
		return "", err
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	upsert := false
	fo := storage_go.FileOptions{Upsert: &upsert}
	if opts.ContentType != "" {
		ct := opts.ContentType
		fo.ContentType = &ct
	}
	resp, err := s.api.UploadFile(s.bucket, path, bytes.NewReader(data), fo)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("upload %s: %s", path, resp.Error)
	}
	return key, nil
}

func (s *SupabaseStore) Get(ctx context.Context, key string, opts GetOptions) ([]byte, error) {
	path, err := ObjectPath(opts.Visibility, opts.Owner, key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.api.DownloadFile(s.bucket, path)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	return data, nil
}

func (s *SupabaseStore) URL(ctx context.Context, key string, opts GetOptions) (string, error) {
	path, err := ObjectPath(opts.Visibility, opts.Owner, key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := s.api.CreateSignedUrl(s.bucket, path, int(s.expiry/time.Second))
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", path, err)
	}
	return resp.SignedURL, nil
}
