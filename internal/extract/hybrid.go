// Package extract implements the hybrid (text-first, OCR-fallback)
// per-page extraction of engineering-project PDFs, and the parallel
// scheduler that fans whole-document extraction out across isolated
// worker processes.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"memorial/internal/carimbo"
	"memorial/internal/logger"
	"memorial/internal/ocr"
	"memorial/internal/pdf"
	"memorial/pkg/models"
)

// HybridOptions tunes the per-page decision procedure.
type HybridOptions struct {
	// MinTextLength is the minimum stripped length for native text to
	// be accepted without OCR.
	MinTextLength int

	// ConfigVersion participates in the OCR cache key so that cached
	// results are invalidated when the OCR configuration changes.
	ConfigVersion string
}

// HybridExtractor runs the per-page state machine: try the native text
// layer, validate it, fall back to cached OCR when it is missing or
// junk.
type HybridExtractor struct {
	engine  pdf.Engine
	pageOCR ocr.PageOCR
	cache   *ocr.Cache
	parser  *carimbo.Parser
	opts    HybridOptions
	log     zerolog.Logger
}

// NewHybridExtractor wires the extractor's collaborators.
func NewHybridExtractor(engine pdf.Engine, pageOCR ocr.PageOCR, cache *ocr.Cache, opts HybridOptions) *HybridExtractor {
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = 50
	}
	return &HybridExtractor{
		engine:  engine,
		pageOCR: pageOCR,
		cache:   cache,
		parser:  carimbo.NewParser(),
		opts:    opts,
		log:     logger.WithComponent("extract"),
	}
}

// ExtractDocument processes every page of the PDF at path and returns
// the document's raw extraction. Page count comes from the PDF's own
// metadata; a page whose text layer cannot be read falls through to
// the OCR path instead of truncating the document. Single-page
// failures degrade to empty page text, never to a document-level
// error.
func (h *HybridExtractor) ExtractDocument(ctx context.Context, path string) (*models.RawExtraction, error) {
	filename := filepath.Base(path)
	log := logger.WithDocument("extract", filename)
	log.Info().Msg("Extracting with hybrid approach")

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	doc, err := h.engine.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer doc.Close()

	result := &models.RawExtraction{Filename: filename}
	var stamps []models.StampFields

	for pageNum := 1; pageNum <= doc.PageCount(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var record models.PageRecord
		nativeText, nativeErr := doc.PageText(pageNum)
		if nativeErr == nil && isTextValid(nativeText, h.opts.MinTextLength) {
			record = models.PageRecord{
				PageNumber: pageNum,
				Method:     models.MethodNative,
				Text:       nativeText,
			}
			result.Metrics.NativePages++
		} else {
			if nativeErr != nil {
				log.Warn().Err(nativeErr).Int("page", pageNum).Msg("Native text layer unreadable, falling back to OCR")
			}
			record = h.ocrPage(ctx, pdfBytes, pageNum, log)
			result.Metrics.OCRPages++
			result.Metrics.TotalOCRTime += record.OCRTime
			if record.FromCache {
				result.Metrics.CacheHits++
			}
		}
		result.Metrics.TotalPages++

		record.Type = classifyPage(record.Text)
		record.Pavimento = extractPavimento(record.Text)
		record.Keywords = extractKeywords(record.Text)
		result.Pages = append(result.Pages, record)

		if stamp := h.parser.Parse(record.Text); !stamp.IsEmpty() {
			stamps = append(stamps, stamp)
		}
	}

	if result.Metrics.OCRPages > 0 {
		result.Metrics.CacheHitRate = float64(result.Metrics.CacheHits) / float64(result.Metrics.OCRPages)
	}
	result.Carimbo = carimbo.Merge(stamps)

	log.Info().
		Int("pages", result.Metrics.TotalPages).
		Int("native", result.Metrics.NativePages).
		Int("ocr", result.Metrics.OCRPages).
		Int("cache_hits", result.Metrics.CacheHits).
		Float64("ocr_time", result.Metrics.TotalOCRTime).
		Msg("Extraction complete")
	return result, nil
}

// ocrPage resolves a page's text through the cache-fronted OCR engine.
// An OCR failure yields an empty-text record: partial extraction is
// expected and must not abort the document.
func (h *HybridExtractor) ocrPage(ctx context.Context, pdfBytes []byte, pageNum int, log zerolog.Logger) models.PageRecord {
	key := ocr.CacheKey(pdfBytes, pageNum, h.opts.ConfigVersion)

	if entry, ok := h.cache.Load(key); ok {
		log.Debug().Int("page", pageNum).Msg("OCR cache hit")
		return models.PageRecord{
			PageNumber: pageNum,
			Method:     models.MethodOCR,
			Text:       entry.Text,
			OCRTime:    entry.OCRTime,
			FromCache:  true,
		}
	}

	start := time.Now()
	text, err := h.pageOCR.RecognizePDFPage(ctx, pdfBytes, pageNum)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		log.Error().Err(err).Int("page", pageNum).Msg("OCR failed")
		return models.PageRecord{PageNumber: pageNum, Method: models.MethodOCR}
	}

	h.cache.Save(key, ocr.CacheEntry{
		Text:       text,
		PageNumber: pageNum,
		OCRTime:    elapsed,
	})
	return models.PageRecord{
		PageNumber: pageNum,
		Method:     models.MethodOCR,
		Text:       text,
		OCRTime:    elapsed,
	}
}

// isTextValid rejects native text that is too short or mostly
// non-alphanumeric noise (vector-drawing artifacts, broken encodings).
func isTextValid(text string, minLength int) bool {
	stripped := strings.TrimSpace(text)
	if len(stripped) < minLength {
		return false
	}

	total := 0
	alnum := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return total > 0 && float64(alnum) >= 0.3*float64(total)
}

var reNumberedFloor = regexp.MustCompile(`(\d+)[ºº°]?\s*(?:pavimento|pav)`)

// classifyPage tags a page by content keywords.
func classifyPage(text string) models.PageType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "legenda") || strings.Contains(lower, "simbologia"):
		return models.PageLegenda
	case strings.Contains(lower, "corte") &&
		(strings.Contains(lower, "esquemático") || strings.Contains(lower, "esquematico")):
		return models.PageCorte
	case strings.Contains(lower, "planta") || strings.Contains(lower, "pavimento"):
		return models.PagePlanta
	case strings.Contains(lower, "detalhe"):
		return models.PageDetalhe
	case strings.Contains(lower, "observa") && len(lower) > 200:
		return models.PageObservacoes
	default:
		return models.PageUnknown
	}
}

// extractPavimento detects the floor a page refers to.
func extractPavimento(text string) string {
	lower := strings.ToLower(text)

	named := []struct {
		label    string
		keywords []string
	}{
		{"subsolo", []string{"subsolo", "sub-solo"}},
		{"térreo", []string{"térreo", "terreo", "tér"}},
		{"cobertura", []string{"cobertura", "coberta", "cobert"}},
	}
	for _, n := range named {
		for _, kw := range n.keywords {
			if strings.Contains(lower, kw) {
				return n.label
			}
		}
	}

	if match := reNumberedFloor.FindStringSubmatch(lower); match != nil {
		return match[1] + "º"
	}
	return ""
}

var keywordMap = []struct {
	key      string
	patterns []string
}{
	{"rj45", []string{"rj-45", "rj45"}},
	{"tv", []string{"tv coletiva", "tv assinatura"}},
	{"wifi", []string{"wifi", "wi-fi"}},
	{"camera", []string{"camera", "câmera", "cftv"}},
	{"interfone", []string{"interfone", "porteiro"}},
	{"cat6", []string{"cat-6", "cat6"}},
	{"rg6", []string{"rg-06", "rg6", "coaxial"}},
	{"divisor", []string{"divisor"}},
}

// extractKeywords collects the building-system keywords present on a
// page.
func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, km := range keywordMap {
		for _, p := range km.patterns {
			if strings.Contains(lower, p) {
				found = append(found, km.key)
				break
			}
		}
	}
	return found
}

// SaveExtraction writes a document's extraction JSON artifact
// (<stem>_extracted.json) to outDir and returns its path.
func SaveExtraction(result *models.RawExtraction, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	stem := strings.TrimSuffix(result.Filename, filepath.Ext(result.Filename))
	path := filepath.Join(outDir, stem+"_extracted.json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode extraction: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write extraction: %w", err)
	}
	return path, nil
}

// ExtractionPath returns the artifact path SaveExtraction would write
// for a given input PDF.
func ExtractionPath(pdfPath, outDir string) string {
	base := filepath.Base(pdfPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+"_extracted.json")
}
