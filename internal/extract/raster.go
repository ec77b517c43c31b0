package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"memorial/internal/carimbo"
	"memorial/internal/logger"
	"memorial/internal/pdf"
	"memorial/internal/tables"
	"memorial/pkg/models"
)

// RasterOptions configures the image-based fallback pass.
type RasterOptions struct {
	DPI int
	// Carimbo and Legenda are the fixed-proportion crops for the
	// title block (bottom-right) and the legend strip (bottom).
	Carimbo tables.ROISpec
	Legenda tables.ROISpec
}

// RasterEnricher runs the image-based fallback on extracted documents:
// table grid detection plus the stamp and legend ROI crops, which
// often recover title-block fields and legend entries the page-level
// OCR mangles.
type RasterEnricher struct {
	renderer  pdf.Renderer
	extractor *tables.Extractor
	parser    *carimbo.Parser
	opts      RasterOptions
	log       zerolog.Logger
}

// NewRasterEnricher wires the pass to a page renderer and a table/ROI
// extractor.
func NewRasterEnricher(renderer pdf.Renderer, extractor *tables.Extractor, opts RasterOptions) *RasterEnricher {
	return &RasterEnricher{
		renderer:  renderer,
		extractor: extractor,
		parser:    carimbo.NewParser(),
		opts:      opts,
		log:       logger.WithComponent("raster"),
	}
}

// Enrich renders the pages whose text had to come from OCR, plus
// legend sheets, and folds what the raster pass finds back into the
// result: detected tables are appended, stamp ROI fields merge into
// the document stamp, and legend ROI text extends the page record so
// the item extractor sees it.
func (e *RasterEnricher) Enrich(ctx context.Context, pdfPath string, result *models.RawExtraction) {
	for i := range result.Pages {
		page := &result.Pages[i]
		if page.Method != models.MethodOCR && page.Type != models.PageLegenda {
			continue
		}

		img, err := e.renderer.RenderPage(ctx, pdfPath, page.PageNumber, e.opts.DPI)
		if err != nil {
			e.log.Warn().Err(err).Int("page", page.PageNumber).Msg("Page render failed")
			continue
		}

		table, err := e.extractor.ExtractTable(ctx, img, fmt.Sprintf("p%d_t0", page.PageNumber))
		if err != nil {
			e.log.Warn().Err(err).Int("page", page.PageNumber).Msg("Table extraction failed")
		} else if len(table.Cells) > 0 {
			result.Tables = append(result.Tables, table)
		}

		stampText, err := e.extractor.ExtractROI(ctx, img, e.opts.Carimbo)
		if err != nil {
			e.log.Warn().Err(err).Int("page", page.PageNumber).Msg("Stamp ROI extraction failed")
		} else if stamp := e.parser.Parse(stampText); !stamp.IsEmpty() {
			result.Carimbo = carimbo.Merge([]models.StampFields{result.Carimbo, stamp})
		}

		legendaText, err := e.extractor.ExtractROI(ctx, img, e.opts.Legenda)
		if err != nil {
			e.log.Warn().Err(err).Int("page", page.PageNumber).Msg("Legend ROI extraction failed")
			continue
		}
		if legendaText != "" && !strings.Contains(page.Text, legendaText) {
			page.Text = strings.TrimSpace(page.Text + "\n" + legendaText)
		}
	}
}
