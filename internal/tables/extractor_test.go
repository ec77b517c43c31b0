package tables

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial/internal/ocr"
	"memorial/pkg/models"
)

// fakeImageOCR returns a fixed text for every region and records how
// many regions it was asked to read.
type fakeImageOCR struct {
	text  string
	calls int
}

func (f *fakeImageOCR) RecognizeImage(ctx context.Context, img image.Image, opts ocr.Options) (string, error) {
	f.calls++
	return f.text, nil
}

// gridImage renders a white page with black ruling lines at the given
// row and column positions.
func gridImage(w, h int, rowsY, colsX []int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for _, y := range rowsY {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{})
			img.SetGray(x, y+1, color.Gray{})
		}
	}
	for _, x := range colsX {
		for y := 0; y < h; y++ {
			img.SetGray(x, y, color.Gray{})
			img.SetGray(x+1, y, color.Gray{})
		}
	}
	return img
}

func TestExtractTableGrid(t *testing.T) {
	img := gridImage(150, 150, []int{10, 75, 140}, []int{10, 75, 140})
	ocrFake := &fakeImageOCR{text: "ponto rj45"}
	extractor := NewExtractor(ocrFake, Options{Languages: []string{"pt"}})

	table, err := extractor.ExtractTable(context.Background(), img, "p1_t0")
	require.NoError(t, err)

	assert.Equal(t, "p1_t0", table.TableID)
	assert.Equal(t, 2, table.NumRows)
	assert.Equal(t, 2, table.NumCols)
	assert.Len(t, table.Cells, 4)
	assert.Equal(t, 4, ocrFake.calls)
	assert.Equal(t, models.TableCell{Row: 0, Col: 0, Text: "ponto rj45"}, table.Cells[0])
	assert.Equal(t, "generic", table.Type)
}

// Fewer than 2 ruling lines in a direction means the region is not a
// grid; it degrades to a single whole-region cell.
func TestExtractTableUnruled(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 80))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	ocrFake := &fakeImageOCR{text: "LEGENDA DOS SÍMBOLOS"}
	extractor := NewExtractor(ocrFake, Options{})

	table, err := extractor.ExtractTable(context.Background(), img, "p2_t0")
	require.NoError(t, err)

	assert.Equal(t, 1, table.NumRows)
	assert.Equal(t, 1, table.NumCols)
	require.Len(t, table.Cells, 1)
	assert.Equal(t, models.TableCell{Row: 0, Col: 0, Text: "LEGENDA DOS SÍMBOLOS"}, table.Cells[0])
	assert.Equal(t, "legenda", table.Type)
	assert.Equal(t, 1, ocrFake.calls)
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name  string
		cells []models.TableCell
		want  string
	}{
		{"normas", []models.TableCell{{Text: "NBR 5410"}, {Text: "NBR 14565"}}, "normas"},
		{"legenda", []models.TableCell{{Text: "Simbologia"}}, "legenda"},
		{"sumario", []models.TableCell{{Text: "SUMÁRIO DE PONTOS"}}, "sumario"},
		{"generic", []models.TableCell{{Text: "12 pontos"}}, "generic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTable(tt.cells))
		})
	}
}

func TestDetectLines(t *testing.T) {
	img := gridImage(150, 150, []int{20, 130}, []int{40, 100})
	binary := binarize(img)

	rows := detectLines(binary, true)
	cols := detectLines(binary, false)

	assert.Equal(t, []int{20, 130}, rows)
	assert.Equal(t, []int{40, 100}, cols)
}

func TestBinarizeBimodal(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		img.Pix[i] = 240
	}
	// Dark square in the corner.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: 20})
		}
	}

	binary := binarize(img)
	assert.EqualValues(t, 0xff, binary.GrayAt(0, 0).Y, "dark pixel is foreground")
	assert.EqualValues(t, 0, binary.GrayAt(9, 9).Y, "light pixel is background")
}

// An image whose foreground is purely horizontal has no measurable
// skew; Deskew must return it untouched.
func TestDeskewNoSkew(t *testing.T) {
	img := gridImage(150, 150, []int{40, 75, 110}, nil)
	out := Deskew(img)
	assert.Same(t, img, out)
}

func TestExtractROITooSmall(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	extractor := NewExtractor(&fakeImageOCR{}, Options{})

	_, err := extractor.ExtractROI(context.Background(), img, ROISpec{XStart: 0.99, YStart: 0.99})
	assert.Error(t, err)
}
