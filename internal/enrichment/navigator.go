package enrichment

import (
	"context"
	"path/filepath"
	"sync"

	"floravision/internal/photo"
	"floravision/internal/services"
)

// Navigator steps through an ordered list of images, opening each through
// the Enricher so revisits are served from the cache.
type Navigator struct {
	e     *Enricher
	mu    sync.Mutex
	paths []string
	index int
}

// Navigator returns a navigator positioned on the first path.
func (e *Enricher) Navigator(paths []string) *Navigator {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, filepath.Clean(p))
	}
	return &Navigator{e: e, paths: cleaned}
}

// Len returns the number of images.
func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paths)
}

// Index returns the current position.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Current returns the current path, or "" when the list is empty.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[n.index]
}

// Open enriches the current image.
func (n *Navigator) Open(ctx context.Context) (*photo.Record, error) {
	return n.move(ctx, 0)
}

// Next advances one image, wrapping to the first after the last.
func (n *Navigator) Next(ctx context.Context) (*photo.Record, error) {
	return n.move(ctx, 1)
}

// Prev steps back one image, wrapping to the last before the first.
func (n *Navigator) Prev(ctx context.Context) (*photo.Record, error) {
	return n.move(ctx, -1)
}

// Seek jumps to index i.
func (n *Navigator) Seek(ctx context.Context, i int) (*photo.Record, error) {
	n.mu.Lock()
	if i < 0 || i >= len(n.paths) {
		n.mu.Unlock()
		return nil, services.Wrap(services.ErrInvalidArgument, "navigator", "seek", "index out of range", nil)
	}
	n.index = i
	path := n.paths[i]
	n.mu.Unlock()
	return n.e.Open(ctx, path)
}

func (n *Navigator) move(ctx context.Context, step int) (*photo.Record, error) {
	n.mu.Lock()
	if len(n.paths) == 0 {
		n.mu.Unlock()
		return nil, services.Wrap(services.ErrInvalidArgument, "navigator", "open", "no images", nil)
	}
	size := len(n.paths)
	n.index = ((n.index+step)%size + size) % size
	path := n.paths[n.index]
	n.mu.Unlock()
	return n.e.Open(ctx, path)
}
