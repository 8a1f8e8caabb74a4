// Package memory provides a volatile, insertion-ordered implementation
// of picstream.MetadataStore.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/picstream/picstream/pkg/picstream"
)

// entry pairs a record with its insertion sequence number. Replacing a
// record keeps the original sequence, so enumeration order is stable.
type entry struct {
	seq   uint64
	image *picstream.Image
}

// Repository implements picstream.MetadataStore using a sync.Map keyed
// by image id. Operations on distinct ids never contend on a shared
// lock; insertion order is reconstructed from per-entry sequence
// numbers rather than a shared list.
type Repository struct {
	records sync.Map // uuid.UUID -> *entry
	seq     atomic.Uint64
	count   atomic.Int64
}

// New creates a new in-memory metadata store
func New() *Repository {
	return &Repository{}
}

func (r *Repository) Put(ctx context.Context, image *picstream.Image) error {
	// Store a copy to prevent external modifications
	imageCopy := *image

	for {
		if v, ok := r.records.Load(image.ID); ok {
			old := v.(*entry)
			if r.records.CompareAndSwap(image.ID, old, &entry{seq: old.seq, image: &imageCopy}) {
				return nil
			}
			// Lost a race on this id; retry against the current state.
			continue
		}

		e := &entry{seq: r.seq.Add(1), image: &imageCopy}
		if _, loaded := r.records.LoadOrStore(image.ID, e); !loaded {
			r.count.Add(1)
			return nil
		}
	}
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*picstream.Image, error) {
	v, ok := r.records.Load(id)
	if !ok {
		return nil, picstream.ErrImageNotFound
	}

	// Return a copy to prevent external modifications
	imageCopy := *v.(*entry).image
	return &imageCopy, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.records.LoadAndDelete(id); ok {
		r.count.Add(-1)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]*picstream.Image, error) {
	var entries []*entry
	r.records.Range(func(_, v any) bool {
		entries = append(entries, v.(*entry))
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	result := make([]*picstream.Image, 0, len(entries))
	for _, e := range entries {
		imageCopy := *e.image
		result = append(result, &imageCopy)
	}

	return result, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	return int(r.count.Load()), nil
}
