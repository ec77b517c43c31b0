package items

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial/pkg/models"
)

func TestFromTextSingleItem(t *testing.T) {
	extractor := NewExtractor()

	text := "PONTO RJ-45 - 10 pontos\nH=1,40m\nCAT-6"
	result := extractor.FromText(text, PageContext{Pavimento: "Térreo"})

	require.Len(t, result, 1)
	item := result[0]
	assert.Equal(t, "point_rj45", item.Tipo)
	assert.Equal(t, 10, item.Quantidade)
	assert.InDelta(t, 1.4, item.AlturaM, 1e-9)
	assert.Equal(t, []string{"cat6"}, item.Cabos)
	assert.Equal(t, "Térreo", item.Pavimento)
}

// A new point type flushes the previous item; attributes after the
// transition belong to the new item only.
func TestFromTextFlushOnTransition(t *testing.T) {
	extractor := NewExtractor()

	text := "Ponto RJ-45\n8 pontos\nPonto Interfone\nH=1,10m\nCCI-2"
	result := extractor.FromText(text, PageContext{Pavimento: "2º"})

	require.Len(t, result, 2)

	assert.Equal(t, "point_rj45", result[0].Tipo)
	assert.Equal(t, 8, result[0].Quantidade)
	assert.Zero(t, result[0].AlturaM)
	assert.Empty(t, result[0].Cabos)

	assert.Equal(t, "point_interfone", result[1].Tipo)
	assert.InDelta(t, 1.1, result[1].AlturaM, 1e-9)
	assert.Equal(t, []string{"cci2"}, result[1].Cabos)
	assert.Equal(t, "2º", result[1].Pavimento)
}

// Flushed items must not share backing storage with the accumulator:
// appending cables to a later item cannot mutate an earlier one.
func TestFromTextNoAliasing(t *testing.T) {
	extractor := NewExtractor()

	text := "Ponto Telefone\nCCI-2\nPonto RJ-45\nCAT-6\nRG-6"
	result := extractor.FromText(text, PageContext{})

	require.Len(t, result, 2)
	assert.Equal(t, []string{"cci2"}, result[0].Cabos)
	assert.Equal(t, []string{"cat6", "rg6_u90"}, result[1].Cabos)
}

func TestFromTextNoItems(t *testing.T) {
	extractor := NewExtractor()

	result := extractor.FromText("Planta baixa sem pontos listados\nEscala 1:50", PageContext{})
	assert.Empty(t, result)
}

func TestFromTable(t *testing.T) {
	extractor := NewExtractor()

	table := models.Table{
		TableID: "p3_t0",
		NumRows: 2,
		NumCols: 3,
		Cells: []models.TableCell{
			// Out of order on purpose; rows and columns must be sorted
			// before joining.
			{Row: 1, Col: 2, Text: "H=0,30m"},
			{Row: 0, Col: 0, Text: "Ponto TV Coletiva"},
			{Row: 1, Col: 0, Text: "Ponto RJ-45"},
			{Row: 0, Col: 1, Text: "4 pontos"},
			{Row: 1, Col: 1, Text: "12 pontos"},
		},
	}
	result := extractor.FromTable(table, PageContext{Pavimento: "Cobertura"})

	require.Len(t, result, 2)
	assert.Equal(t, "point_tv_coletiva", result[0].Tipo)
	assert.Equal(t, 4, result[0].Quantidade)
	assert.Equal(t, "point_rj45", result[1].Tipo)
	assert.Equal(t, 12, result[1].Quantidade)
	assert.InDelta(t, 0.3, result[1].AlturaM, 1e-9)
	assert.Equal(t, "Cobertura", result[1].Pavimento)
}

func TestNormalizeAll(t *testing.T) {
	raw := []models.RawItem{
		{Tipo: "rj-45", Quantidade: 3, Pavimento: "Térreo", Cabos: []string{"cat-6"}},
		{Tipo: "", Quantidade: 9},
		{Tipo: "tv coletiva", Divisor: "divisor 1/4"},
	}

	normalized := NormalizeAll(raw)

	require.Len(t, normalized, 2)
	assert.Equal(t, "point_rj45", normalized[0].Tipo)
	assert.Equal(t, []string{"cat6"}, normalized[0].Cabos)
	// Floor labels are user-facing and stay verbatim.
	assert.Equal(t, "Térreo", normalized[0].Pavimento)
	assert.Equal(t, "point_tv_coletiva", normalized[1].Tipo)
	assert.Equal(t, "div_1_4", normalized[1].Divisor)
}
