package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskinfer/pkg/logger"
	"taskinfer/pkg/targets"
)

var cachePath = filepath.FromSlash("/ws/.taskinfer/cache/vite.hash")

func sampleSet() targets.TargetSet {
	return targets.TargetSet{
		"build": targets.Build("vite build", "build", "vite", nil, []string{"{projectRoot}/dist"}, "."),
		"serve": targets.Serve("vite serve", "."),
	}
}

func TestStore_Load(t *testing.T) {
	t.Run("Should start empty when the file is absent", func(t *testing.T) {
		store := NewStore(cachePath, logger.Nop())
		require.NoError(t, store.Load(afero.NewMemMapFs()))
		_, ok := store.Get("anything")
		assert.False(t, ok)
	})

	t.Run("Should start empty when the file is corrupt", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, cachePath, []byte(`{"abc": {"build": `), 0o644))

		store := NewStore(cachePath, logger.Nop())
		require.NoError(t, store.Load(fs))
		_, ok := store.Get("abc")
		assert.False(t, ok)
	})

	t.Run("Should drop entries that violate the output invariant", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, cachePath, []byte(`{
			"good": {"serve": {"command": "vite serve", "options": {"cwd": "."}}},
			"bad": {"build": {"command": "vite build", "options": {"cwd": "."}, "cache": true}}
		}`), 0o644))

		store := NewStore(cachePath, logger.Nop())
		require.NoError(t, store.Load(fs))
		_, ok := store.Get("good")
		assert.True(t, ok)
		_, ok = store.Get("bad")
		assert.False(t, ok)
	})
}

func TestStore_GetOrCompute(t *testing.T) {
	ctx := context.Background()

	t.Run("Should compute once and then hit", func(t *testing.T) {
		store := NewStore(cachePath, logger.Nop())
		var calls int32
		compute := func(context.Context) (targets.TargetSet, error) {
			atomic.AddInt32(&calls, 1)
			return sampleSet(), nil
		}

		first, hit, err := store.GetOrCompute(ctx, "fp", compute)
		require.NoError(t, err)
		assert.False(t, hit)

		second, hit, err := store.GetOrCompute(ctx, "fp", compute)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, first, second)
		assert.EqualValues(t, 1, calls)
	})

	t.Run("Should share one computation between concurrent callers", func(t *testing.T) {
		store := NewStore(cachePath, logger.Nop())
		var calls int32
		release := make(chan struct{})
		compute := func(context.Context) (targets.TargetSet, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return sampleSet(), nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := store.GetOrCompute(ctx, "same", compute)
				assert.NoError(t, err)
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.EqualValues(t, 1, calls)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("Should not record failed computations", func(t *testing.T) {
		store := NewStore(cachePath, logger.Nop())
		_, _, err := store.GetOrCompute(ctx, "fp", func(context.Context) (targets.TargetSet, error) {
			return nil, errors.New("boom")
		})
		require.Error(t, err)
		assert.Equal(t, 0, store.Len())
	})
}

func TestStore_Flush(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, cachePath, []byte(`{
		"stale": {"serve": {"command": "vite serve", "options": {"cwd": "."}}},
		"reused": {"serve": {"command": "vite serve", "options": {"cwd": "apps/web"}}}
	}`), 0o644))

	store := NewStore(cachePath, logger.Nop())
	require.NoError(t, store.Load(fs))

	_, hit, err := store.GetOrCompute(ctx, "reused", func(context.Context) (targets.TargetSet, error) {
		t.Fatal("reused entry must come from the persisted cache")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, err = store.GetOrCompute(ctx, "fresh", func(context.Context) (targets.TargetSet, error) {
		return sampleSet(), nil
	})
	require.NoError(t, err)

	require.NoError(t, store.Flush(fs))

	exists, err := afero.Exists(fs, cachePath+".tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	reloaded := NewStore(cachePath, logger.Nop())
	require.NoError(t, reloaded.Load(fs))
	_, ok := reloaded.Get("stale")
	assert.False(t, ok, "entries not used in the pass are not carried over")
	fresh, ok := reloaded.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, sampleSet(), fresh)
	_, ok = reloaded.Get("reused")
	assert.True(t, ok)

	require.NoError(t, reloaded.Clear(fs))
	exists, err = afero.Exists(fs, cachePath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_FlushOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "nuxt.hash")
	fs := afero.NewOsFs()

	store := NewStore(path, logger.Nop())
	require.NoError(t, store.Load(fs))
	store.Put("fp", sampleSet())
	require.NoError(t, store.Flush(fs))

	reloaded := NewStore(path, logger.Nop())
	require.NoError(t, reloaded.Load(fs))
	set, ok := reloaded.Get("fp")
	require.True(t, ok)
	assert.Equal(t, sampleSet(), set)
}
