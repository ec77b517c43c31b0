package ocr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4 fake content")

	key1 := CacheKey(pdfBytes, 3, "v1")
	key2 := CacheKey(pdfBytes, 3, "v1")
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64)
}

func TestCacheKeyDiscriminates(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4 fake content")

	base := CacheKey(pdfBytes, 1, "v1")
	assert.NotEqual(t, base, CacheKey(pdfBytes, 2, "v1"), "page must change the key")
	assert.NotEqual(t, base, CacheKey(pdfBytes, 1, "v2"), "config version must change the key")
	assert.NotEqual(t, base, CacheKey([]byte("other"), 1, "v1"), "content must change the key")
}

func TestCacheKeyFieldBoundaries(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4 fake content")

	// Concatenation across field boundaries must not alias.
	assert.NotEqual(t, CacheKey(pdfBytes, 1, "2x"), CacheKey(pdfBytes, 12, "x"))
	assert.NotEqual(t, CacheKey([]byte("doc1"), 2, "v1"), CacheKey([]byte("doc"), 12, "v1"))
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(t.TempDir())
	key := CacheKey([]byte("doc"), 1, "v1")

	_, ok := cache.Load(key)
	assert.False(t, ok, "empty cache must miss")

	entry := CacheEntry{Text: "PLANTA BAIXA TÉRREO", PageNumber: 1, OCRTime: 2.5}
	cache.Save(key, entry)

	loaded, ok := cache.Load(key)
	require.True(t, ok)
	assert.Equal(t, entry.Text, loaded.Text)
	assert.Equal(t, entry.PageNumber, loaded.PageNumber)
	assert.Equal(t, entry.OCRTime, loaded.OCRTime)
}

// A corrupt entry is a miss, never an error that stops extraction.
func TestCacheCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)
	key := CacheKey([]byte("doc"), 1, "v1")

	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644))

	_, ok := cache.Load(key)
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	cache := NewCache(t.TempDir())
	for page := 1; page <= 3; page++ {
		cache.Save(CacheKey([]byte("doc"), page, "v1"), CacheEntry{Text: "x", PageNumber: page})
	}

	removed, err := cache.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, ok := cache.Load(CacheKey([]byte("doc"), 1, "v1"))
	assert.False(t, ok)
}
