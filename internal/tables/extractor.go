// Package tables implements the image-based fallback extraction:
// table grid detection on rendered page rasters, and fixed-proportion
// region-of-interest (stamp, legend) OCR with deskew.
package tables

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"memorial/internal/logger"
	"memorial/internal/ocr"
	"memorial/pkg/models"
)

// ROISpec is a fixed-proportion crop anchored to the bottom-right of
// the page: the region from (XStart*W, YStart*H) to the page corner.
type ROISpec struct {
	XStart float64
	YStart float64
}

// Options configures cell and region OCR.
type Options struct {
	Languages []string
	// Whitelist constrains ROI OCR output to title-block characters.
	Whitelist string
}

// Extractor detects ruled tables on page rasters and OCRs their cells,
// and extracts deskewed ROI text.
type Extractor struct {
	imageOCR ocr.ImageOCR
	opts     Options
	log      zerolog.Logger
}

// NewExtractor wires the extractor to an image OCR backend.
func NewExtractor(imageOCR ocr.ImageOCR, opts Options) *Extractor {
	return &Extractor{
		imageOCR: imageOCR,
		opts:     opts,
		log:      logger.WithComponent("tables"),
	}
}

// ExtractTable detects the ruling grid of img and OCRs each cell.
// When fewer than 2 lines exist in either direction the region is not
// a ruled table; it degrades to a single whole-region cell instead of
// returning nothing.
func (e *Extractor) ExtractTable(ctx context.Context, img image.Image, tableID string) (models.Table, error) {
	gray := toGray(img)
	binary := binarize(gray)

	rows := detectLines(binary, true)
	cols := detectLines(binary, false)

	table := models.Table{TableID: tableID}
	if len(rows) < 2 || len(cols) < 2 {
		e.log.Debug().Str("table", tableID).Msg("No ruling grid found, extracting as single cell")
		text, err := e.imageOCR.RecognizeImage(ctx, img, ocr.Options{Languages: e.opts.Languages})
		if err != nil {
			return table, fmt.Errorf("extract unruled region: %w", err)
		}
		table.NumRows = 1
		table.NumCols = 1
		table.Cells = []models.TableCell{{Row: 0, Col: 0, Text: strings.TrimSpace(text)}}
		table.Type = classifyTable(table.Cells)
		return table, nil
	}

	table.NumRows = len(rows) - 1
	table.NumCols = len(cols) - 1
	for r := 0; r < table.NumRows; r++ {
		for c := 0; c < table.NumCols; c++ {
			rect := image.Rect(cols[c], rows[r], cols[c+1], rows[r+1])
			if rect.Dx() < 4 || rect.Dy() < 4 {
				continue
			}
			text, err := e.imageOCR.RecognizeImage(ctx, crop(gray, rect), ocr.Options{Languages: e.opts.Languages})
			if err != nil {
				e.log.Warn().Err(err).Str("table", tableID).Int("row", r).Int("col", c).Msg("Cell OCR failed")
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			table.Cells = append(table.Cells, models.TableCell{Row: r, Col: c, Text: text})
		}
	}

	table.Type = classifyTable(table.Cells)
	e.log.Debug().
		Str("table", tableID).
		Int("rows", table.NumRows).
		Int("cols", table.NumCols).
		Int("cells", len(table.Cells)).
		Msg("Table extracted")
	return table, nil
}

// ExtractROI crops the proportional region, deskews it and runs
// whitelist-constrained OCR tuned for title-block data.
func (e *Extractor) ExtractROI(ctx context.Context, img image.Image, roi ROISpec) (string, error) {
	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+int(roi.XStart*float64(b.Dx())),
		b.Min.Y+int(roi.YStart*float64(b.Dy())),
		b.Max.X,
		b.Max.Y,
	)
	if rect.Dx() < 4 || rect.Dy() < 4 {
		return "", fmt.Errorf("roi region too small: %v", rect)
	}

	region := Deskew(crop(toGray(img), rect))
	text, err := e.imageOCR.RecognizeImage(ctx, region, ocr.Options{
		Languages: e.opts.Languages,
		Whitelist: e.opts.Whitelist,
	})
	if err != nil {
		return "", fmt.Errorf("roi ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Deskew estimates the dominant foreground orientation from image
// moments and rotates the image upright when the skew exceeds half a
// degree. Smaller angles are scanner noise and rotating would only
// blur the glyphs.
func Deskew(gray *image.Gray) *image.Gray {
	angle := skewAngle(binarize(gray))
	if math.Abs(angle) <= 0.5 {
		return gray
	}
	return rotate(gray, -angle)
}

// skewAngle returns the orientation in degrees of the foreground's
// principal axis, via central second-order moments.
func skewAngle(binary *image.Gray) float64 {
	b := binary.Bounds()
	var n, sumX, sumY float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if binary.GrayAt(x, y).Y > 0 {
				n++
				sumX += float64(x)
				sumY += float64(y)
			}
		}
	}
	if n < 100 {
		return 0
	}
	cx, cy := sumX/n, sumY/n

	var mu11, mu20, mu02 float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if binary.GrayAt(x, y).Y > 0 {
				dx, dy := float64(x)-cx, float64(y)-cy
				mu11 += dx * dy
				mu20 += dx * dx
				mu02 += dy * dy
			}
		}
	}
	if mu20 == mu02 && mu11 == 0 {
		return 0
	}

	theta := 0.5 * math.Atan2(2*mu11, mu20-mu02)
	deg := theta * 180 / math.Pi
	// Fold into (-45, 45]: text skew is always small, a steeper
	// principal axis means the moments latched onto column structure.
	if deg > 45 {
		deg -= 90
	} else if deg <= -45 {
		deg += 90
	}
	return deg
}

// rotate returns gray rotated by deg degrees about its center, white
// background filled.
func rotate(gray *image.Gray, deg float64) *image.Gray {
	b := gray.Bounds()
	dst := image.NewGray(b)
	for i := range dst.Pix {
		dst.Pix[i] = 0xff
	}

	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx := float64(b.Min.X+b.Max.X) / 2
	cy := float64(b.Min.Y+b.Max.Y) / 2

	// Rotation about (cx, cy): translate to origin, rotate, translate
	// back, composed into a single affine matrix.
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(dst, m, gray, b, xdraw.Src, nil)
	return dst
}

// binarize applies Otsu's threshold and returns a foreground mask
// (ink = 255, background = 0).
func binarize(gray *image.Gray) *image.Gray {
	var hist [256]int
	b := gray.Bounds()
	total := b.Dx() * b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	threshold := 0
	var sumB, wB, maxVar float64
	for i, c := range hist {
		wB += float64(c)
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(c)
		mB := sumB / wB
		mF := (sum - sumB) / wF
		v := wB * wF * (mB - mF) * (mB - mF)
		if v > maxVar {
			maxVar = v
			threshold = i
		}
	}

	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			// Ink is darker than the threshold.
			if int(gray.GrayAt(x, y).Y) <= threshold {
				out.SetGray(x, y, color.Gray{Y: 0xff})
			}
		}
	}
	return out
}

// detectLines finds ruling-line positions along one axis. A scanline
// counts as part of a line when it holds a contiguous foreground run
// at least 1/15 of the image extent, which is the run-length
// equivalent of opening with a long thin structuring element.
// Adjacent matching scanlines merge into one line; the returned
// positions are the merged centers, sorted.
func detectLines(binary *image.Gray, horizontal bool) []int {
	b := binary.Bounds()
	var outer, inner int
	if horizontal {
		outer, inner = b.Dy(), b.Dx()
	} else {
		outer, inner = b.Dx(), b.Dy()
	}
	minRun := inner / 15
	if minRun < 8 {
		minRun = 8
	}

	isLine := make([]bool, outer)
	for o := 0; o < outer; o++ {
		run := 0
		for i := 0; i < inner; i++ {
			var v uint8
			if horizontal {
				v = binary.GrayAt(b.Min.X+i, b.Min.Y+o).Y
			} else {
				v = binary.GrayAt(b.Min.X+o, b.Min.Y+i).Y
			}
			if v > 0 {
				run++
				if run >= minRun {
					isLine[o] = true
					break
				}
			} else {
				run = 0
			}
		}
	}

	var positions []int
	start := -1
	for o := 0; o <= outer; o++ {
		if o < outer && isLine[o] {
			if start < 0 {
				start = o
			}
			continue
		}
		if start >= 0 {
			center := (start + o - 1) / 2
			if horizontal {
				positions = append(positions, b.Min.Y+center)
			} else {
				positions = append(positions, b.Min.X+center)
			}
			start = -1
		}
	}
	sort.Ints(positions)
	return positions
}

// classifyTable tags a table by its cell content.
func classifyTable(cells []models.TableCell) string {
	var sb strings.Builder
	for _, c := range cells {
		sb.WriteString(strings.ToLower(c.Text))
		sb.WriteByte(' ')
	}
	text := sb.String()
	switch {
	case strings.Contains(text, "legenda") || strings.Contains(text, "simbologia"):
		return "legenda"
	case strings.Contains(text, "sumário") || strings.Contains(text, "sumario"):
		return "sumario"
	case strings.Contains(text, "nbr") || strings.Contains(text, "norma"):
		return "normas"
	default:
		return "generic"
	}
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	xdraw.Draw(gray, b, img, b.Min, xdraw.Src)
	return gray
}

func crop(gray *image.Gray, rect image.Rectangle) *image.Gray {
	rect = rect.Intersect(gray.Bounds())
	return gray.SubImage(rect).(*image.Gray)
}
