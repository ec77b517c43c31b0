package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial/internal/items"
	"memorial/pkg/models"
)

// End-to-end over the text half of the pipeline: raw page text through
// item extraction, normalization and consolidation.
func TestPipelineFromPageText(t *testing.T) {
	extraction := models.RawExtraction{
		Filename: "planta-terreo.pdf",
		Pages: []models.PageRecord{
			{
				PageNumber: 1,
				Method:     models.MethodNative,
				Pavimento:  "Térreo",
				Text:       "PLANTA BAIXA PAVIMENTO TÉRREO\nPonto RJ-45 - 10 pontos\nH=1,40m",
			},
			{
				PageNumber: 2,
				Method:     models.MethodOCR,
				Text:       "LEGENDA\nCAT-6",
			},
		},
		Carimbo: models.StampFields{Empreendimento: "Residencial Aurora", Construtora: "Alfa"},
	}

	extractor := items.NewExtractor()
	var raw []models.RawItem
	for _, page := range extraction.Pages {
		raw = append(raw, extractor.FromText(page.Text, items.PageContext{Pavimento: page.Pavimento})...)
	}
	normalized := items.NormalizeAll(raw)

	require.Len(t, normalized, 1)
	item := normalized[0]
	assert.Equal(t, "point_rj45", item.Tipo)
	assert.Equal(t, 10, item.Quantidade)
	assert.InDelta(t, 1.4, item.AlturaM, 1e-9)
	assert.Equal(t, "Térreo", item.Pavimento)

	master := New().Consolidate([]models.RawExtraction{extraction}, normalized)

	assert.Equal(t, "Residencial Aurora", master.Obra.Empreendimento)
	assert.Equal(t, []string{"dados"}, master.Servicos)
	assert.Equal(t, []string{"Térreo"}, master.Pavimentos)
	assert.Equal(t, []string{"planta-terreo.pdf"}, master.Fontes)
}
