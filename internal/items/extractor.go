// Package items scans page and table text for inventory records of
// installed building-system items (points, cables, splitters) and
// normalizes them against the canonical synonym table.
package items

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"memorial/internal/canonical"
	"memorial/internal/logger"
	"memorial/pkg/models"
)

var reQuantidade = regexp.MustCompile(`(\d+)\s*(?:un|unid|unidades?|pontos?|pçs?)`)

// cableKeys are the canonical keys treated as cable types; matches are
// appended to the open item's Cabos list instead of overwriting fields.
var cableKeys = map[string]bool{
	"cat6":    true,
	"rg6_u90": true,
	"cci2":    true,
}

// PageContext carries per-page state inherited by every item opened
// while scanning that page.
type PageContext struct {
	Pavimento string
}

// Extractor builds RawItems from free text and detected tables.
type Extractor struct {
	mapper *canonical.Mapper
	log    zerolog.Logger
}

// NewExtractor creates an item extractor with its own canonical mapper.
func NewExtractor() *Extractor {
	return &Extractor{
		mapper: canonical.NewMapper(),
		log:    logger.WithComponent("items"),
	}
}

// FromText extracts items from free text, line by line. A single
// accumulator is open at any time: a line that canonicalizes to a
// point_* type flushes the previous item (if it already has a type)
// and opens a new one seeded with the page's floor label. Attribute
// extraction runs on every line regardless of whether it opened a new
// item, so a line can both start an item and contribute attributes to
// it.
func (e *Extractor) FromText(text string, ctx PageContext) []models.RawItem {
	var result []models.RawItem
	current := models.RawItem{Pavimento: ctx.Pavimento}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if tipo, ok := e.mapper.FindCanonical(line); ok && strings.HasPrefix(tipo, "point_") {
			if current.Tipo != "" {
				result = append(result, current)
			}
			current = models.RawItem{Tipo: tipo, Pavimento: ctx.Pavimento}
		}

		lower := strings.ToLower(line)
		if match := reQuantidade.FindStringSubmatch(lower); match != nil {
			current.Quantidade, _ = strconv.Atoi(match[1])
		}
		if altura, ok := e.mapper.ExtractAltura(line); ok {
			current.AlturaM = altura
		}
		if diam, ok := e.mapper.ExtractDiameter(line); ok {
			if diam.MM != 0 {
				current.MM = diam.MM
			}
			if diam.Polegadas != "" {
				current.Polegadas = diam.Polegadas
			}
		}
		if cabo, ok := e.mapper.FindCanonical(line); ok && cableKeys[cabo] {
			current.Cabos = append(current.Cabos, cabo)
		}
		if divisor, ok := e.mapper.ExtractDivisor(line); ok {
			current.Divisor = divisor
		}
	}

	if current.Tipo != "" {
		result = append(result, current)
	}
	return result
}

// FromTable extracts items from a detected table by joining each row's
// cell text with spaces and reusing the line scanner per row.
func (e *Extractor) FromTable(table models.Table, ctx PageContext) []models.RawItem {
	if len(table.Cells) == 0 {
		return nil
	}

	rows := make(map[int][]models.TableCell)
	for _, cell := range table.Cells {
		rows[cell.Row] = append(rows[cell.Row], cell)
	}

	rowIdx := make([]int, 0, len(rows))
	for idx := range rows {
		rowIdx = append(rowIdx, idx)
	}
	sort.Ints(rowIdx)

	var result []models.RawItem
	for _, idx := range rowIdx {
		cells := rows[idx]
		sort.Slice(cells, func(i, j int) bool { return cells[i].Col < cells[j].Col })
		parts := make([]string, 0, len(cells))
		for _, c := range cells {
			parts = append(parts, c.Text)
		}
		result = append(result, e.FromText(strings.Join(parts, " "), ctx)...)
	}
	return result
}

// NormalizeAll runs items through a second canonical pass and drops any
// item still lacking a type. Type, cable and divisor values are mapped
// to canonical keys; floor labels are kept verbatim since they flow
// into user-facing output.
func NormalizeAll(raw []models.RawItem) []models.RawItem {
	mapper := canonical.NewMapper()
	log := logger.WithComponent("items")

	normalized := make([]models.RawItem, 0, len(raw))
	for _, item := range raw {
		if key, ok := mapper.FindCanonical(item.Tipo); ok {
			item.Tipo = key
		}
		if item.Tipo == "" {
			continue
		}
		if key, ok := mapper.FindCanonical(item.Divisor); ok && item.Divisor != "" {
			item.Divisor = key
		}
		if len(item.Cabos) > 0 {
			cabos := make([]string, 0, len(item.Cabos))
			for _, c := range item.Cabos {
				if key, ok := mapper.FindCanonical(c); ok {
					c = key
				}
				cabos = append(cabos, c)
			}
			item.Cabos = cabos
		}
		normalized = append(normalized, item)
	}

	log.Info().
		Int("raw", len(raw)).
		Int("normalized", len(normalized)).
		Msg("Normalized extracted items")
	return normalized
}
