package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	entries := []Entry{
		{Key: "k\x00go", Value: []byte{1}},
		{Key: "t\x00go\x00doc-1", Value: []byte{0, 3}},
	}
	require.NoError(t, store.Save("articles", entries))

	got, err := store.Load("articles")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestStore_LoadMissing(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	got, err := store.Load("nothing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Save("a", []Entry{{Key: "x", Value: []byte("1")}}))
	require.NoError(t, store.Save("a", []Entry{}))

	got, err := store.Load("a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_ExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	first, err := OpenStore(dir)
	require.NoError(t, err)

	_, err = OpenStore(dir)
	assert.Error(t, err)

	require.NoError(t, first.Close())
	second, err := OpenStore(dir)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpenReader_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path, err := NewWriter(dir).Write("a", []Entry{{Key: "x", Value: []byte("payload")}})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[HeaderSize+2] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = OpenReader(path)
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestOpenReader_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.seg")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize+FooterSize), 0o644))

	_, err := OpenReader(path)
	assert.ErrorContains(t, err, "bad magic")
}
