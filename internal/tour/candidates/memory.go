package candidates

import (
	"context"
	"sort"
	"sync"

	"museum-tour-workers/internal/models"
)

// MemoryCorpus evaluates specifications against an in-process artwork list.
type MemoryCorpus struct {
	mu       sync.RWMutex
	artworks map[int64]models.Artwork
}

func NewMemoryCorpus(artworks ...models.Artwork) *MemoryCorpus {
	c := &MemoryCorpus{artworks: make(map[int64]models.Artwork, len(artworks))}
	c.Put(artworks...)
	return c
}

// Put adds or replaces artworks by id.
func (c *MemoryCorpus) Put(artworks ...models.Artwork) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range artworks {
		c.artworks[a.ID] = a
	}
}

func (c *MemoryCorpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.artworks)
}

func (c *MemoryCorpus) FetchBySpecification(ctx context.Context, spec Specification) ([]models.Artwork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	matches := make([]models.Artwork, 0)
	for _, a := range c.artworks {
		if spec.Matches(a) {
			matches = append(matches, a)
		}
	}
	c.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if spec.Limit > 0 && len(matches) > spec.Limit {
		matches = matches[:spec.Limit]
	}
	return matches, nil
}
