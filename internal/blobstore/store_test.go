package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetObject(ctx, "cache/missing.json")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutObject(ctx, "cache/a.json", []byte(`{"a":1}`)))

		got, err := s.GetObject(ctx, "cache/a.json")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got))
	})

	t.Run("overwrite is last writer wins", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutObject(ctx, "cache/a.json", []byte("first")))
		require.NoError(t, s.PutObject(ctx, "cache/a.json", []byte("second")))

		got, err := s.GetObject(ctx, "cache/a.json")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("delete removes object", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutObject(ctx, "cache/a.json", []byte("x")))
		require.NoError(t, s.DeleteObject(ctx, "cache/a.json"))

		_, err := s.GetObject(ctx, "cache/a.json")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete missing key is not an error", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.DeleteObject(ctx, "cache/never.json"))
	})

	t.Run("list filters by prefix", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutObject(ctx, "cache/a.json", []byte("aa")))
		require.NoError(t, s.PutObject(ctx, "cache/b.json", []byte("bbbb")))
		require.NoError(t, s.PutObject(ctx, "other/c.json", []byte("c")))

		infos, err := s.ListKeys(ctx, "cache/")
		require.NoError(t, err)
		assert.Equal(t, []ObjectInfo{
			{Key: "cache/a.json", Size: 2},
			{Key: "cache/b.json", Size: 4},
		}, infos)
	})

	t.Run("list empty prefix", func(t *testing.T) {
		s := newStore(t)
		infos, err := s.ListKeys(ctx, "cache/")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("invalid keys rejected", func(t *testing.T) {
		s := newStore(t)
		for _, key := range []string{"", "/abs.json", "cache/../escape.json"} {
			err := s.PutObject(ctx, key, []byte("x"))
			assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMemoryStore_SetFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutObject(ctx, "cache/a.json", []byte("x")))

	outage := errors.New("backend unavailable")
	s.SetFailure(outage)

	_, err := s.GetObject(ctx, "cache/a.json")
	assert.ErrorIs(t, err, outage)
	assert.ErrorIs(t, s.PutObject(ctx, "cache/b.json", []byte("y")), outage)
	_, err = s.ListKeys(ctx, "cache/")
	assert.ErrorIs(t, err, outage)
	assert.ErrorIs(t, Ping(ctx, s), outage)

	s.SetFailure(nil)
	got, err := s.GetObject(ctx, "cache/a.json")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, s.PutObject(ctx, "cache/a.json", data))
	data[0] = 'z'

	got, err := s.GetObject(ctx, "cache/a.json")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStore_ListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)
	require.NoError(t, s.PutObject(ctx, "cache/a.json", []byte("x")))

	// leftover from a crashed writer
	require.NoError(t, os.WriteFile(filepath.Join(root, "cache", ".tmp-partial"), []byte("junk"), 0o644))

	infos, err := s.ListKeys(ctx, "cache/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "cache/a.json", infos[0].Key)
}

func TestFileStore_EntryDeletedAfterReadDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "gone.json"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kept.json"), []byte("xy"), 0o644))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// a sweep removes the file between the directory read and the stat
	require.NoError(t, os.Remove(filepath.Join(root, "gone.json")))

	info, ok, err := entryInfo(entries[0])
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, info)

	info, ok, err = entryInfo(entries[1])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), info.Size())
}

func TestFileStore_ListDuringConcurrentDeletes(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	keys := make([]string, 200)
	for i := range keys {
		keys[i] = fmt.Sprintf("cache/%03d.json", i)
		require.NoError(t, s.PutObject(ctx, keys[i], []byte("x")))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, k := range keys {
			_ = s.DeleteObject(ctx, k)
		}
	}()

	for {
		_, err := s.ListKeys(ctx, "cache/")
		require.NoError(t, err)
		select {
		case <-done:
			infos, err := s.ListKeys(ctx, "cache/")
			require.NoError(t, err)
			assert.Empty(t, infos)
			return
		default:
		}
	}
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cache/", "cache/"},
		{"a*b", `a\*b`},
		{"[x]?", `\[x\]\?`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeGlob(tt.in))
	}
}
