// Package source reads raw manifest bytes for a manifest source. No caching is done beyond what the caller's poll
// interval implies.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/namix-io/hierarchy-engine/pkg/manifest"
)

// ErrNotFound is returned when the manifest source does not exist
var ErrNotFound = errors.New("manifest not found")

// IOError wraps failures of the underlying storage
type IOError struct {
	Source manifest.ManifestSource
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Source, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Reader returns raw manifest bytes for a manifest source
type Reader interface {
	Read(ctx context.Context, src manifest.ManifestSource) ([]byte, error)
}

type fsReader struct {
	root string
}

// NewFSReader returns a reader serving sources from the local directory root. RepoURL and TargetRevision are ignored.
func NewFSReader(root string) Reader {
	return &fsReader{root: root}
}

func (r *fsReader) Read(ctx context.Context, src manifest.ManifestSource) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := path.Clean(strings.TrimPrefix(src.Path, "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, &IOError{Source: src, Err: fmt.Errorf("path %q is outside of the repository", src.Path)}
	}
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", src, ErrNotFound)
		}
		return nil, &IOError{Source: src, Err: err}
	}
	return data, nil
}

// MemoryReader serves manifests from memory, keyed by slash separated path
type MemoryReader struct {
	lock  sync.RWMutex
	files map[string][]byte
	reads map[string]int
}

func NewMemoryReader(files map[string]string) *MemoryReader {
	r := &MemoryReader{files: map[string][]byte{}, reads: map[string]int{}}
	for k, v := range files {
		r.files[path.Clean(k)] = []byte(v)
	}
	return r
}

// Set replaces the content of the file at p
func (r *MemoryReader) Set(p string, content string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.files[path.Clean(p)] = []byte(content)
}

// Reads returns how many times the file at p was read
func (r *MemoryReader) Reads(p string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.reads[path.Clean(p)]
}

func (r *MemoryReader) Read(ctx context.Context, src manifest.ManifestSource) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	p := path.Clean(src.Path)
	r.reads[p]++
	data, ok := r.files[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", src, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}
