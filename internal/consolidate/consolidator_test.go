package consolidate

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial/pkg/models"
)

func TestFloorOrdering(t *testing.T) {
	extractions := []models.RawExtraction{
		{Filename: "a.pdf", Pages: []models.PageRecord{
			{PageNumber: 1, Pavimento: "Cobertura"},
			{PageNumber: 2, Pavimento: "8º"},
			{PageNumber: 3, Pavimento: "Térreo"},
		}},
	}
	itens := []models.RawItem{
		{Tipo: "point_rj45", Pavimento: "1º"},
		{Tipo: "point_rj45", Pavimento: "Pav 3"},
		{Tipo: "point_rj45", Pavimento: "Subsolo"},
	}

	master := New().Consolidate(extractions, itens)

	assert.Equal(t, []string{"Subsolo", "Térreo", "1º", "Pav 3", "8º", "Cobertura"}, master.Pavimentos)
	assert.Equal(t, master.Pavimentos, master.Obra.Pavimentos)
}

func TestServiceBucketing(t *testing.T) {
	itens := []models.RawItem{
		{Tipo: "cam_bullet"},
		{Tipo: "point_rj45"},
		{Tipo: "point_telefone"},
		{Tipo: "mb10"}, // unmapped, contributes no service
	}

	master := New().Consolidate(nil, itens)

	// Canonical priority order, filtered to present services.
	assert.Equal(t, []string{"voz", "dados", "monitoramento"}, master.Servicos)
}

func TestStampMergeIntoObra(t *testing.T) {
	extractions := []models.RawExtraction{
		{Filename: "a.pdf", Carimbo: models.StampFields{
			Empreendimento: "Res. Aurora",
			Construtora:    "Alfa Engenharia Ltda",
			Revisao:        "01",
		}},
		{Filename: "b.pdf", Carimbo: models.StampFields{
			Empreendimento: "Residencial Aurora Torre Norte",
			Revisao:        "03",
			Escala:         "1:50",
		}},
		{Filename: "c.pdf", Error: "timeout after 5m0s", Carimbo: models.StampFields{
			Empreendimento: "deve ser ignorado porque o documento falhou",
		}},
	}

	master := New().Consolidate(extractions, nil)

	assert.Equal(t, "Residencial Aurora Torre Norte", master.Obra.Empreendimento)
	assert.Equal(t, "Alfa Engenharia Ltda", master.Obra.Construtora)
	assert.Equal(t, "03", master.Obra.Carimbo.Revisao)
	assert.Equal(t, "1:50", master.Obra.Carimbo.Escala)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, master.Fontes)
}

func TestTechnicalRoomsFirstOccurrenceWins(t *testing.T) {
	extractions := []models.RawExtraction{
		{Filename: "a.pdf", Pages: []models.PageRecord{
			{PageNumber: 1, Pavimento: "Térreo", Text: "SALA DE MONITORAMENTO junto à portaria"},
			{PageNumber: 2, Pavimento: "Subsolo", Text: "sala de monitoramento secundária"},
			{PageNumber: 3, Pavimento: "Cobertura", Text: "instalar RACK de 19 polegadas"},
			{PageNumber: 4, Text: "miniERP do condomínio"}, // "ER" only as word
		}},
	}

	master := New().Consolidate(extractions, nil)

	require.Len(t, master.SalasTecnicas, 2)
	assert.Equal(t, "Sala de Monitoramento", master.SalasTecnicas[0].Nome)
	assert.Equal(t, "Térreo", master.SalasTecnicas[0].Localizacao)
	assert.Equal(t, "Rack", master.SalasTecnicas[1].Nome)
}

func TestCollectNormas(t *testing.T) {
	extractions := []models.RawExtraction{
		{Filename: "a.pdf", Pages: []models.PageRecord{
			{PageNumber: 1, Text: "conforme NBR 14565 e NBR-5410"},
			{PageNumber: 2, Text: "atender à nbr 14565 novamente"},
		}},
	}

	master := New().Consolidate(extractions, nil)
	assert.Equal(t, []string{"NBR 14565", "NBR 5410"}, master.Normas)
	assert.Len(t, master.NormasPadrao, 10)
	assert.Contains(t, master.NormasPadrao, "NBR 5410 - Instalações elétricas de baixa tensão")
}

func TestExportJSON(t *testing.T) {
	outDir := t.TempDir()
	consolidator := New()
	master := consolidator.Consolidate(nil, []models.RawItem{{Tipo: "point_rj45", Quantidade: 4}})

	path, err := consolidator.ExportJSON(master, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "mestre.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"point_rj45"`)
}

func TestExportCSVs(t *testing.T) {
	outDir := t.TempDir()
	consolidator := New()
	master := consolidator.Consolidate(nil, []models.RawItem{
		{Tipo: "point_rj45", Quantidade: 10, Pavimento: "Térreo", Cabos: []string{"cat6"}},
		{Tipo: "point_rj45", Quantidade: 12, Pavimento: "1º", Cabos: []string{"cat6"}},
		{Tipo: "quadro_vdi", Pavimento: "Térreo"},
	})

	require.NoError(t, consolidator.ExportCSVs(master, outDir))

	// Every CSV starts with a UTF-8 BOM.
	for _, name := range []string{"itens_por_pavimento.csv", "totais_por_servico.csv", "salas_tecnicas.csv"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}), "%s must carry a BOM", name)
	}

	// Items CSV: columns with no data anywhere are omitted.
	itensData, err := os.ReadFile(filepath.Join(outDir, "itens_por_pavimento.csv"))
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(itensData, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"pavimento", "tipo", "quantidade", "cabos"}, records[0])
	assert.Equal(t, []string{"Térreo", "point_rj45", "10", "cat6"}, records[1])

	// Totals CSV: services alphabetical, unmapped types in "outros",
	// quantity defaults to 1 for unquantified items.
	totaisData, err := os.ReadFile(filepath.Join(outDir, "totais_por_servico.csv"))
	require.NoError(t, err)
	totais, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(totaisData, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, totais, 3)
	assert.Equal(t, []string{"servico", "total_pontos"}, totais[0])
	assert.Equal(t, []string{"dados", "22"}, totais[1])
	assert.Equal(t, []string{"outros", "1"}, totais[2])
}
