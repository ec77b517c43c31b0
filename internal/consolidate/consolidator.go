// Package consolidate merges per-document extractions and normalized
// items into the canonical master structure and writes the JSON/CSV
// artifacts consumed by the generation and document-writer layers.
package consolidate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"memorial/internal/carimbo"
	"memorial/internal/logger"
	"memorial/pkg/models"
)

// servicoPorTipo maps canonical item types to the service each one
// belongs to. Unmapped types land in the "outros" bucket of the
// totals export and contribute no service to the master list.
var servicoPorTipo = map[string]string{
	"point_telefone":      "voz",
	"point_interfone":     "intercomunicacao",
	"point_rj45":          "dados",
	"wifi_indoor":         "dados",
	"wifi_outdoor":        "dados",
	"point_tv_coletiva":   "video",
	"point_tv_assinatura": "video",
	"cam_bullet":          "monitoramento",
	"cam_dome":            "monitoramento",
}

// servicoOrdem is the canonical presentation order of services in the
// master document.
var servicoOrdem = []string{"voz", "dados", "video", "intercomunicacao", "monitoramento"}

// salaKeywords maps technical-room text patterns to the room name they
// identify. ER and EF are matched as whole words; they are far too
// short for substring matching.
var salaKeywords = []struct {
	re   *regexp.Regexp
	nome string
}{
	{regexp.MustCompile(`(?i)sala\s+de\s+monitoramento`), "Sala de Monitoramento"},
	{regexp.MustCompile(`(?i)sala\s+t[ée]cnica`), "Sala Técnica"},
	{regexp.MustCompile(`(?i)\bER\b`), "ER"},
	{regexp.MustCompile(`(?i)\bEF\b`), "EF"},
	{regexp.MustCompile(`(?i)\brack\b`), "Rack"},
}

var reNorma = regexp.MustCompile(`(?i)\bNBR\s*[-]?\s*(\d{3,5})\b`)

// reFloorDigits pulls the first digit run out of a floor label, so
// "pav 3" and "3º pavimento" both order as floor 3.
var reFloorDigits = regexp.MustCompile(`\d+`)

// normasPadrao lists the telecommunications standards every memorial
// cites regardless of what the drawings mention.
var normasPadrao = []string{
	"NBR 14565 - Cabeamento de telecomunicações para edifícios comerciais",
	"NBR 16264 - Cabeamento estruturado residencial",
	"EIA/TIA-569 - Commercial Building Standard for Telecommunications Pathways and Spaces",
	"IEEE 802.3ah - Ethernet in the First Mile",
	"ISO/TIA 568-C - Commercial Building Telecommunications Cabling Standard",
	"ISO/TIA 569-B - Commercial Building Standard for Telecommunications Pathways and Spaces",
	"ISO/TIA 606-A - Administration Standard for Commercial Telecommunications Infrastructure",
	"ISO/TIA 607-B - Generic Telecommunications Bonding and Grounding for Customer Premises",
	"ISO/TIA 942 - Data Center Standards Overview",
	"NBR 5410 - Instalações elétricas de baixa tensão",
}

// Consolidator builds MasterData out of raw extractions and normalized
// items.
type Consolidator struct {
	log zerolog.Logger
}

func New() *Consolidator {
	return &Consolidator{log: logger.WithComponent("consolidate")}
}

// Consolidate merges everything into the master structure. Order
// matters: the stamp merge and floor union feed the Obra block the
// later steps read from. The inputs are not mutated.
func (c *Consolidator) Consolidate(extractions []models.RawExtraction, itens []models.RawItem) *models.MasterData {
	master := &models.MasterData{Itens: itens}

	var stamps []models.StampFields
	for _, ext := range extractions {
		if ext.Error != "" {
			continue
		}
		if !ext.Carimbo.IsEmpty() {
			stamps = append(stamps, ext.Carimbo)
		}
		master.Fontes = append(master.Fontes, ext.Filename)
	}
	sort.Strings(master.Fontes)

	merged := carimbo.Merge(stamps)
	master.Obra = models.Obra{
		Construtora:    merged.Construtora,
		Empreendimento: merged.Empreendimento,
		Endereco:       merged.Endereco,
		Carimbo: models.ObraCarimbo{
			Projeto: merged.Projeto,
			Revisao: merged.Revisao,
			Data:    merged.Data,
			Escala:  merged.Escala,
			Autor:   merged.Autor,
			Arquivo: merged.Arquivo,
		},
	}

	master.Pavimentos = collectPavimentos(extractions, itens)
	master.Obra.Pavimentos = master.Pavimentos
	master.Obra.Tipologia = detectTipologia(extractions)
	master.Servicos = collectServicos(itens)
	master.SalasTecnicas = collectSalas(extractions)
	master.Normas = collectNormas(extractions)
	master.NormasPadrao = append([]string(nil), normasPadrao...)

	c.log.Info().
		Int("itens", len(master.Itens)).
		Int("pavimentos", len(master.Pavimentos)).
		Strs("servicos", master.Servicos).
		Int("salas_tecnicas", len(master.SalasTecnicas)).
		Msg("Consolidation complete")
	return master
}

// collectPavimentos unions the floor labels seen in page records and
// items, sorted bottom-up in building order.
func collectPavimentos(extractions []models.RawExtraction, itens []models.RawItem) []string {
	seen := map[string]bool{}
	var floors []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			floors = append(floors, p)
		}
	}
	for _, ext := range extractions {
		for _, page := range ext.Pages {
			add(page.Pavimento)
		}
	}
	for _, item := range itens {
		add(item.Pavimento)
	}

	sort.SliceStable(floors, func(i, j int) bool {
		return floorKey(floors[i]) < floorKey(floors[j])
	})
	return floors
}

// floorKey orders floor labels the way a building section reads:
// subsolo below térreo, numbered floors in numeric order, cobertura on
// top. Unrecognized labels sit between numbered floors and cobertura.
func floorKey(label string) int {
	lower := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(lower, "subsolo"):
		return -1
	case strings.Contains(lower, "térreo") || strings.Contains(lower, "terreo"):
		return 0
	case strings.Contains(lower, "cobertura"):
		return 999
	}
	if digits := reFloorDigits.FindString(lower); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			return n
		}
	}
	return 500
}

// collectServicos buckets items into services and emits them in the
// canonical priority order, filtered to the ones actually present.
func collectServicos(itens []models.RawItem) []string {
	present := map[string]bool{}
	for _, item := range itens {
		if s, ok := servicoPorTipo[item.Tipo]; ok {
			present[s] = true
		}
	}

	var servicos []string
	for _, s := range servicoOrdem {
		if present[s] {
			servicos = append(servicos, s)
		}
	}
	return servicos
}

// collectSalas scans page text for technical-room mentions; one record
// per page-level keyword hit, deduplicated by room name with the first
// occurrence winning.
func collectSalas(extractions []models.RawExtraction) []models.SalaTecnica {
	seen := map[string]bool{}
	var salas []models.SalaTecnica
	for _, ext := range extractions {
		for _, page := range ext.Pages {
			for _, kw := range salaKeywords {
				if !kw.re.MatchString(page.Text) || seen[kw.nome] {
					continue
				}
				seen[kw.nome] = true
				salas = append(salas, models.SalaTecnica{
					Nome:        kw.nome,
					Localizacao: page.Pavimento,
				})
			}
		}
	}
	return salas
}

// collectNormas gathers unique NBR standard references cited anywhere
// in the extracted text.
func collectNormas(extractions []models.RawExtraction) []string {
	seen := map[string]bool{}
	var normas []string
	for _, ext := range extractions {
		for _, page := range ext.Pages {
			for _, m := range reNorma.FindAllStringSubmatch(page.Text, -1) {
				norma := "NBR " + m[1]
				if !seen[norma] {
					seen[norma] = true
					normas = append(normas, norma)
				}
			}
		}
	}
	sort.Strings(normas)
	return normas
}

// detectTipologia takes the first sheet typology detected across the
// inputs, preferring planta pages.
func detectTipologia(extractions []models.RawExtraction) string {
	for _, ext := range extractions {
		for _, page := range ext.Pages {
			if page.Type != models.PagePlanta {
				continue
			}
			if t := carimbo.ExtractTipologia(page.Text); t != "" {
				return t
			}
		}
	}
	for _, ext := range extractions {
		for _, page := range ext.Pages {
			if t := carimbo.ExtractTipologia(page.Text); t != "" {
				return t
			}
		}
	}
	return ""
}

// ExportJSON writes mestre.json to outDir.
func (c *Consolidator) ExportJSON(master *models.MasterData, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outDir, "mestre.json")
	data, err := json.MarshalIndent(master, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode master data: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write master data: %w", err)
	}
	return path, nil
}

// ExportCSVs writes the three tabular exports. Every file is
// BOM-prefixed UTF-8 so spreadsheet tools pick the encoding up.
func (c *Consolidator) ExportCSVs(master *models.MasterData, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeItensCSV(master.Itens, filepath.Join(outDir, "itens_por_pavimento.csv")); err != nil {
		return err
	}
	if err := writeTotaisCSV(master.Itens, filepath.Join(outDir, "totais_por_servico.csv")); err != nil {
		return err
	}
	return writeSalasCSV(master.SalasTecnicas, filepath.Join(outDir, "salas_tecnicas.csv"))
}

// itensColumn describes one candidate column of the items export; the
// column is emitted only when some item has a value for it.
type itensColumn struct {
	header  string
	present func(models.RawItem) bool
	value   func(models.RawItem) string
}

var itensColumns = []itensColumn{
	{"pavimento",
		func(i models.RawItem) bool { return i.Pavimento != "" },
		func(i models.RawItem) string { return i.Pavimento }},
	{"tipo",
		func(i models.RawItem) bool { return i.Tipo != "" },
		func(i models.RawItem) string { return i.Tipo }},
	{"quantidade",
		func(i models.RawItem) bool { return i.Quantidade != 0 },
		func(i models.RawItem) string { return strconv.Itoa(i.Quantidade) }},
	{"altura_m",
		func(i models.RawItem) bool { return i.AlturaM != 0 },
		func(i models.RawItem) string {
			if i.AlturaM == 0 {
				return ""
			}
			return strconv.FormatFloat(i.AlturaM, 'f', -1, 64)
		}},
	{"cabos",
		func(i models.RawItem) bool { return len(i.Cabos) > 0 },
		func(i models.RawItem) string { return strings.Join(i.Cabos, ";") }},
	{"divisor",
		func(i models.RawItem) bool { return i.Divisor != "" },
		func(i models.RawItem) string { return i.Divisor }},
	{"observacao",
		func(i models.RawItem) bool { return i.Observacao != "" },
		func(i models.RawItem) string { return i.Observacao }},
}

func writeItensCSV(itens []models.RawItem, path string) error {
	var cols []itensColumn
	for _, col := range itensColumns {
		for _, item := range itens {
			if col.present(item) {
				cols = append(cols, col)
				break
			}
		}
	}
	if len(cols) == 0 {
		cols = itensColumns[:2]
	}

	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = col.header
	}

	rows := make([][]string, 0, len(itens))
	for _, item := range itens {
		row := make([]string, len(cols))
		for i, col := range cols {
			if col.present(item) {
				row[i] = col.value(item)
			}
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

func writeTotaisCSV(itens []models.RawItem, path string) error {
	totals := map[string]int{}
	for _, item := range itens {
		servico, ok := servicoPorTipo[item.Tipo]
		if !ok {
			servico = "outros"
		}
		qty := item.Quantidade
		if qty == 0 {
			qty = 1
		}
		totals[servico] += qty
	}

	servicos := make([]string, 0, len(totals))
	for s := range totals {
		servicos = append(servicos, s)
	}
	sort.Strings(servicos)

	rows := make([][]string, 0, len(servicos))
	for _, s := range servicos {
		rows = append(rows, []string{s, strconv.Itoa(totals[s])})
	}
	return writeCSV(path, []string{"servico", "total_pontos"}, rows)
}

func writeSalasCSV(salas []models.SalaTecnica, path string) error {
	rows := make([][]string, 0, len(salas))
	for _, sala := range salas {
		rows = append(rows, []string{sala.Nome, sala.Localizacao, strings.Join(sala.Requisitos, ";")})
	}
	return writeCSV(path, []string{"nome", "localizacao", "requisitos"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	// BOM so Excel and LibreOffice decode the accented characters.
	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return nil
}
