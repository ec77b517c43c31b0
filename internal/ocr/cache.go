package ocr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"memorial/internal/logger"
)

// CacheEntry is one persisted OCR result.
type CacheEntry struct {
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number"`
	OCRTime    float64 `json:"ocr_time"` // seconds
	FromCache  bool    `json:"from_cache"`
}

// Cache is a content-addressed store of OCR results, one JSON file per
// key under a configured directory. Identical (bytes, page, config
// version) inputs always map to the same key, so concurrent writers to
// the same key are harmless: the value is deterministic and
// last-write-wins. Caching failures are never allowed to abort the
// extraction they serve; every read/write error degrades to a miss.
type Cache struct {
	dir string
	log zerolog.Logger
}

// NewCache creates a cache rooted at dir. The directory is created on
// first write.
func NewCache(dir string) *Cache {
	return &Cache{
		dir: dir,
		log: logger.WithComponent("ocr-cache"),
	}
}

// CacheKey derives the content address for a page's OCR result:
// SHA-256 over the raw PDF bytes, the page number and the OCR
// configuration version. The bytes carry a length prefix and the page
// a terminator so adjacent fields cannot alias (page 12 with version
// "x" must not hash like page 1 with version "2x").
func CacheKey(pdfBytes []byte, pageNumber int, configVersion string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:", len(pdfBytes))
	h.Write(pdfBytes)
	fmt.Fprintf(h, "%d:%s", pageNumber, configVersion)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Load returns the cached entry for key, or ok=false on a miss. Any
// I/O or decoding error is logged and treated as a miss.
func (c *Cache) Load(key string) (CacheEntry, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("key", shortKey(key)).Msg("Failed to read cache entry")
		}
		return CacheEntry{}, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn().Err(err).Str("key", shortKey(key)).Msg("Failed to decode cache entry")
		return CacheEntry{}, false
	}
	return entry, true
}

// Save persists an entry under key. Failures are logged at warning
// level and otherwise ignored.
func (c *Cache) Save(key string, entry CacheEntry) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.log.Warn().Err(err).Str("dir", c.dir).Msg("Failed to create cache directory")
		return
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		c.log.Warn().Err(err).Str("key", shortKey(key)).Msg("Failed to encode cache entry")
		return
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		c.log.Warn().Err(err).Str("key", shortKey(key)).Msg("Failed to write cache entry")
		return
	}
	c.log.Debug().Str("key", shortKey(key)).Msg("Cached OCR result")
}

// Clear deletes every cache entry. Returns the number of entries
// removed.
func (c *Cache) Clear() (int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("Failed to remove cache entry")
			continue
		}
		removed++
	}
	c.log.Info().Int("removed", removed).Msg("Cleared OCR cache")
	return removed, nil
}

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}
