package sound

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ResourceClient issues signed playback references.
type ResourceClient interface {
	ResolveResource(ctx context.Context, itemID string, validityMinutes int) (ResourceRef, error)
}

// validityFactor scales an item's duration into the lifetime requested for
// its playback URL, leaving room for slow playback starts.
const validityFactor = 3

// Resolver caches playback references per item until they expire.
//
// Concurrent misses for the same item are not collapsed: every call that
// misses the cache issues its own request and the last response wins.
type Resolver struct {
	client ResourceClient
	now    func() time.Time

	mu   sync.Mutex
	refs map[string]ResourceRef
}

// NewResolver creates a Resolver backed by client.
func NewResolver(client ResourceClient) *Resolver {
	return &Resolver{
		client: client,
		now:    time.Now,
		refs:   make(map[string]ResourceRef),
	}
}

// Resolve returns a playback reference for item, fetching a fresh one when
// the cached reference is missing or expired.
func (r *Resolver) Resolve(ctx context.Context, item Item) (ResourceRef, error) {
	if item.ID == "" {
		return ResourceRef{}, errors.New("resolve playback: item has no id")
	}

	r.mu.Lock()
	cached, ok := r.refs[item.ID]
	r.mu.Unlock()
	if ok && cached.Valid(r.now()) {
		return cached, nil
	}

	ref, err := r.client.ResolveResource(ctx, item.ID, ValidityMinutes(item.Duration))
	if err != nil {
		return ResourceRef{}, err
	}

	r.mu.Lock()
	r.refs[item.ID] = ref
	r.mu.Unlock()
	return ref, nil
}

// Forget drops the cached reference for id.
func (r *Resolver) Forget(id string) {
	r.mu.Lock()
	delete(r.refs, id)
	r.mu.Unlock()
}

// ValidityMinutes is the URL lifetime requested for a sound of duration d:
// three times the duration, rounded up to whole minutes, at least one.
func ValidityMinutes(d time.Duration) int {
	total := validityFactor * d
	minutes := int(total / time.Minute)
	if total%time.Minute != 0 {
		minutes++
	}
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
