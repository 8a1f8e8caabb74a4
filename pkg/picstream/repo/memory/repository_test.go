package memory_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/picstream/picstream/pkg/picstream"
	"github.com/picstream/picstream/pkg/picstream/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImage(name string) *picstream.Image {
	id := uuid.New()
	return &picstream.Image{
		ID:          id,
		DisplayName: name,
		SizeBytes:   1024,
		MimeType:    "image/png",
		UploadedAt:  time.Now().UTC(),
		StorageKey:  id.String(),
	}
}

func TestRepositoryBasicOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		img := newImage("a.png")
		require.NoError(t, repo.Put(ctx, img))

		got, err := repo.Get(ctx, img.ID)
		require.NoError(t, err)
		assert.Equal(t, img.ID, got.ID)
		assert.Equal(t, "a.png", got.DisplayName)
		assert.Equal(t, img.StorageKey, got.StorageKey)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, picstream.ErrImageNotFound)
	})

	t.Run("DeleteMissingIsNoOp", func(t *testing.T) {
		assert.NoError(t, repo.Delete(ctx, uuid.New()))
	})

	t.Run("DeleteRemovesRecord", func(t *testing.T) {
		img := newImage("b.png")
		require.NoError(t, repo.Put(ctx, img))
		require.NoError(t, repo.Delete(ctx, img.ID))

		_, err := repo.Get(ctx, img.ID)
		assert.ErrorIs(t, err, picstream.ErrImageNotFound)
	})
}

func TestRepositoryGetReturnsCopy(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	img := newImage("original.png")
	require.NoError(t, repo.Put(ctx, img))

	// Mutating the caller's struct or a fetched copy must not affect
	// the stored record.
	img.DisplayName = "mutated"

	got, err := repo.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "original.png", got.DisplayName)

	got.DisplayName = "mutated again"
	again, err := repo.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "original.png", again.DisplayName)
}

func TestRepositoryInsertionOrder(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	const n = 50
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		img := newImage(fmt.Sprintf("img-%03d.png", i))
		require.NoError(t, repo.Put(ctx, img))
		ids = append(ids, img.ID)
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, n)
	for i, img := range list {
		assert.Equal(t, ids[i], img.ID, "position %d", i)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

func TestRepositoryReplaceKeepsPosition(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	first := newImage("first.png")
	second := newImage("second.png")
	third := newImage("third.png")
	for _, img := range []*picstream.Image{first, second, third} {
		require.NoError(t, repo.Put(ctx, img))
	}

	replacement := *second
	replacement.DisplayName = "replaced.png"
	require.NoError(t, repo.Put(ctx, &replacement))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, "replaced.png", list[1].DisplayName)
	assert.Equal(t, third.ID, list[2].ID)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRepositoryConcurrentUploadsAndDeletes(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	const n = 1000

	// Concurrent puts on distinct ids.
	images := make([]*picstream.Image, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		images[i] = newImage(fmt.Sprintf("concurrent-%04d.png", i))
		wg.Add(1)
		go func(img *picstream.Image) {
			defer wg.Done()
			require.NoError(t, repo.Put(ctx, img))
		}(images[i])
	}
	wg.Wait()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, n, count)

	// Concurrently delete a random ~20%.
	rng := rand.New(rand.NewSource(42))
	deleted := make(map[uuid.UUID]bool)
	for _, img := range images {
		if rng.Float64() < 0.2 {
			deleted[img.ID] = true
		}
	}

	for id := range deleted {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			require.NoError(t, repo.Delete(ctx, id))
		}(id)
	}
	wg.Wait()

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n-len(deleted), count)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n-len(deleted))

	seen := make(map[uuid.UUID]bool, len(list))
	for _, img := range list {
		assert.False(t, deleted[img.ID], "deleted id %s still listed", img.ID)
		seen[img.ID] = true
	}
	for _, img := range images {
		if !deleted[img.ID] {
			assert.True(t, seen[img.ID], "surviving id %s missing from list", img.ID)
		} else {
			_, err := repo.Get(ctx, img.ID)
			assert.ErrorIs(t, err, picstream.ErrImageNotFound)
		}
	}
}
