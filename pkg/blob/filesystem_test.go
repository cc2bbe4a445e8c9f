package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest lets the same behavioral suite run against both local
// backends.
func storeUnderTest(t *testing.T, name string) Store {
	t.Helper()
	switch name {
	case "filesystem":
		s, err := NewFileSystemStore(filepath.Join(t.TempDir(), "blobs"))
		require.NoError(t, err)
		return s
	case "memory":
		return NewMemoryStore()
	}
	t.Fatalf("unknown store %q", name)
	return nil
}

func TestStoreRoundTrip(t *testing.T) {
	for _, backend := range []string{"filesystem", "memory"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := storeUnderTest(t, backend)

			err := store.Put(ctx, "img/abc.png", pngHeader, "image/png")
			require.NoError(t, err)

			data, err := store.Get(ctx, "img/abc.png")
			require.NoError(t, err)
			assert.Equal(t, pngHeader, data)

			// Overwrite
			err = store.Put(ctx, "img/abc.png", gifHeader, "image/gif")
			require.NoError(t, err)
			data, err = store.Get(ctx, "img/abc.png")
			require.NoError(t, err)
			assert.Equal(t, gifHeader, data)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	for _, backend := range []string{"filesystem", "memory"} {
		t.Run(backend, func(t *testing.T) {
			store := storeUnderTest(t, backend)
			_, err := store.Get(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for _, backend := range []string{"filesystem", "memory"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := storeUnderTest(t, backend)

			require.NoError(t, store.Put(ctx, "a/b", []byte("x"), "text/plain"))
			require.NoError(t, store.Delete(ctx, "a/b"))
			_, err := store.Get(ctx, "a/b")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is not an error.
			assert.NoError(t, store.Delete(ctx, "a/b"))
		})
	}
}

func TestStoreList(t *testing.T) {
	for _, backend := range []string{"filesystem", "memory"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			store := storeUnderTest(t, backend)

			require.NoError(t, store.Put(ctx, "repo/com/a/1.0.0/a-1.0.0.jar", zipHeader, "application/java-archive"))
			require.NoError(t, store.Put(ctx, "repo/com/a/maven-metadata-local.xml", []byte("<metadata/>"), "application/xml"))
			require.NoError(t, store.Put(ctx, "img/x.png", pngHeader, "image/png"))

			objects, err := store.List(ctx, "repo/")
			require.NoError(t, err)
			require.Len(t, objects, 2)
			keys := []string{objects[0].Key, objects[1].Key}
			assert.Contains(t, keys, "repo/com/a/1.0.0/a-1.0.0.jar")
			assert.Contains(t, keys, "repo/com/a/maven-metadata-local.xml")
			for _, obj := range objects {
				assert.Positive(t, obj.Size)
			}

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}
