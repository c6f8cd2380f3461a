package microsoft

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryBlob implements MSAL's cache marshal contract over a byte slice.
type memoryBlob struct {
	data []byte
}

func (b *memoryBlob) Marshal() ([]byte, error) {
	return b.data, nil
}

func (b *memoryBlob) Unmarshal(data []byte) error {
	b.data = append([]byte(nil), data...)
	return nil
}

func TestFileCacheRoundTrip(t *testing.T) {
	root := t.TempDir()
	fc := newFileCache(root, "work")

	out := &memoryBlob{data: []byte(`{"AccessToken":{}}`)}
	require.NoError(t, fc.Export(context.Background(), out, cache.ExportHints{}))

	in := &memoryBlob{}
	require.NoError(t, fc.Replace(context.Background(), in, cache.ReplaceHints{}))
	assert.Equal(t, out.data, in.data)
}

func TestFileCacheReplaceMissingFileIsFirstUse(t *testing.T) {
	fc := newFileCache(t.TempDir(), "new-account")

	in := &memoryBlob{}
	require.NoError(t, fc.Replace(context.Background(), in, cache.ReplaceHints{}))
	assert.Empty(t, in.data)
}

func TestFileCachePermissions(t *testing.T) {
	root := t.TempDir()
	fc := newFileCache(root, "work")
	require.NoError(t, fc.Export(context.Background(), &memoryBlob{data: []byte("secret")}, cache.ExportHints{}))

	info, err := os.Stat(fc.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileCacheIsolationPerAccount(t *testing.T) {
	root := t.TempDir()
	a := newFileCache(root, "alpha")
	b := newFileCache(root, "beta")

	require.NoError(t, a.Export(context.Background(), &memoryBlob{data: []byte("alpha-tokens")}, cache.ExportHints{}))
	require.NoError(t, b.Export(context.Background(), &memoryBlob{data: []byte("beta-tokens")}, cache.ExportHints{}))

	// Deleting one account's cache never affects another's.
	require.NoError(t, os.Remove(a.path))

	in := &memoryBlob{}
	require.NoError(t, b.Replace(context.Background(), in, cache.ReplaceHints{}))
	assert.Equal(t, []byte("beta-tokens"), in.data)

	_, err := os.Stat(filepath.Join(root, "msal-alpha.json"))
	assert.True(t, os.IsNotExist(err))
}
