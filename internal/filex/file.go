// Package filex bridges the local filesystem and in-memory attachments: it
// reads files into assets and materializes previews as temp files.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/buildlog/internal/client/attachments"
)

// MaxAssetSize caps what ReadAsset will load into memory.
const MaxAssetSize = 64 << 20

var ErrTooLarge = errors.New("file too large")

// EnsureSubDir creates dirName under the working directory if needed and
// returns its absolute path.
func EnsureSubDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// ReadAsset loads path as an asset named after its base name.
func ReadAsset(path string) (attachments.Asset, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return attachments.Asset{}, err
	}
	if fi.IsDir() {
		return attachments.Asset{}, fmt.Errorf("%s is a directory", path)
	}
	if fi.Size() > MaxAssetSize {
		return attachments.Asset{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, fi.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return attachments.Asset{}, err
	}
	name := filepath.Base(path)
	return attachments.Asset{
		Name:        name,
		ContentType: attachments.DetectContentType(name, data),
		Data:        data,
	}, nil
}

// TempPreviews hands out previews as files in a private temp directory.
// Close removes whatever is left.
type TempPreviews struct {
	dir string

	mu   sync.Mutex
	live map[string]struct{}
}

func NewTempPreviews() (*TempPreviews, error) {
	dir, err := os.MkdirTemp("", "buildlog-preview-")
	if err != nil {
		return nil, fmt.Errorf("preview dir: %w", err)
	}
	return &TempPreviews{dir: dir, live: make(map[string]struct{})}, nil
}

func (p *TempPreviews) Dir() string { return p.dir }

func (p *TempPreviews) Acquire(a attachments.Asset) (string, error) {
	f, err := os.CreateTemp(p.dir, "*-"+filepath.Base(a.Name))
	if err != nil {
		return "", err
	}
	if _, err := f.Write(a.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}

	p.mu.Lock()
	p.live[f.Name()] = struct{}{}
	p.mu.Unlock()
	return f.Name(), nil
}

func (p *TempPreviews) Release(handle string) {
	p.mu.Lock()
	_, ok := p.live[handle]
	delete(p.live, handle)
	p.mu.Unlock()

	if ok {
		_ = os.Remove(handle)
	}
}

// Live reports how many previews are currently held.
func (p *TempPreviews) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func (p *TempPreviews) Close() error {
	p.mu.Lock()
	p.live = make(map[string]struct{})
	p.mu.Unlock()
	return os.RemoveAll(p.dir)
}
