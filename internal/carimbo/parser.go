// Package carimbo parses the title block (carimbo) of engineering
// drawing sheets: a best-effort chain of layered strategies over OCR'd
// or native text. No strategy guarantees completeness; fields that are
// not found stay empty strings so downstream formatting never deals
// with absent keys.
package carimbo

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"memorial/internal/canonical"
	"memorial/internal/logger"
	"memorial/pkg/models"
)

// Tier 1: OCR artifact where every field label lands concatenated on a
// single line, with the values on the following lines.
var reLabelBlock = regexp.MustCompile(`(?i)PROJETO:\s*CONSTRUTOR:\s*EDIF[ÍI]CIO:\s*LOCAL:`)

// Tier 2: per-field label patterns. RE2 has no lookahead, so each
// capture is single-line and trailing label tokens are stripped
// afterwards by reTrailingLabel.
var tier2Patterns = []struct {
	field   string
	pattern *regexp.Regexp
}{
	{"projeto", regexp.MustCompile(`(?i)(?:PROJETO|DESENHO)\s*:\s*([^\n]+)`)},
	{"construtora", regexp.MustCompile(`(?i)(?:CONSTRUTORA?|EMPRESA)\s*:\s*([^\n]+)`)},
	{"empreendimento", regexp.MustCompile(`(?i)(?:EMPREENDIMENTO|OBRA|EDIF[ÍI]CIO)\s*:\s*([^\n]+)`)},
	{"endereco", regexp.MustCompile(`(?i)(?:ENDERE[ÇC]O|LOCAL)\s*:\s*([^\n]+)`)},
	{"autor", regexp.MustCompile(`(?i)(?:AUTOR|DESENHISTA|PROJETISTA)\s*:\s*([^\n]+)`)},
	{"arquivo", regexp.MustCompile(`(?i)(?:ARQUIVO|DWG|N[ºO°])\s*:\s*([^\n]+)`)},
}

var reTrailingLabel = regexp.MustCompile(`(?i)\s*(?:PROJETO|DESENHO|CONSTRUTORA?|EMPRESA|EMPREENDIMENTO|OBRA|EDIF[ÍI]CIO|ENDERE[ÇC]O|LOCAL|AUTOR|DESENHISTA|ARQUIVO|DATA|ESCALA|REV)\s*:.*$`)

// Address-recovery pattern: street-type prefix, lot/block/number marker,
// trailing city/state segment.
var reEnderecoRecovery = regexp.MustCompile(`(?i)(?:AVENIDA|RUA|ALAMEDA|TRAVESSA|AV\.|R\.|AL\.)[^\n]{3,100}?(?:LOTE|QUADRA|QD\.?|LT\.?|N[ºO°]?\s*\d+)[^\n]{0,80}?[-–]\s*[A-ZÀ-Úa-zà-ú][^\n]{1,50}`)

var streetKeywords = []string{
	"AVENIDA", "RUA", "AV.", "R.", "LOTE", "QUADRA", "TRAVESSA", "AL.", "ALAMEDA",
}

// Parser extracts the nine stamp fields from sheet text.
type Parser struct {
	mapper *canonical.Mapper
	log    zerolog.Logger
}

// NewParser creates a stamp parser.
func NewParser() *Parser {
	return &Parser{
		mapper: canonical.NewMapper(),
		log:    logger.WithComponent("carimbo"),
	}
}

// Parse runs the strategy chain over the text: the label-block layout
// when its marker is present, per-field regexes otherwise, then the
// unconditional date fallback and the address-recovery window.
func (p *Parser) Parse(text string) models.StampFields {
	var fields models.StampFields

	if loc := reLabelBlock.FindStringIndex(text); loc != nil {
		p.parseLabelBlock(text[loc[1]:], &fields)
	} else {
		p.parseFieldPatterns(text, &fields)
	}

	if fields.Revisao == "" {
		if rev, ok := p.mapper.ExtractRevisao(text); ok {
			fields.Revisao = rev
		}
	}
	if fields.Escala == "" {
		if esc, ok := p.mapper.ExtractEscala(text); ok {
			fields.Escala = esc
		}
	}
	if fields.Data == "" {
		if data, ok := p.mapper.ExtractData(text); ok {
			fields.Data = data
		}
	}
	if fields.Endereco == "" {
		fields.Endereco = p.recoverEndereco(text, fields.Empreendimento)
	}

	return fields
}

// parseLabelBlock handles the concatenated-labels OCR layout: the first
// three non-empty lines after the label run are, in order, the project
// name, the builder and the development; the remaining lines are
// scanned for an address line and a scale line.
func (p *Parser) parseLabelBlock(after string, fields *models.StampFields) {
	var lines []string
	for _, line := range strings.Split(after, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		fields.Projeto = lines[0]
	}
	if len(lines) > 1 {
		fields.Construtora = lines[1]
	}
	if len(lines) > 2 {
		fields.Empreendimento = lines[2]
	}

	for _, line := range lines[min(3, len(lines)):] {
		if fields.Endereco == "" && isAddressLine(line) {
			fields.Endereco = line
			continue
		}
		if fields.Escala == "" && strings.Contains(line, "/") && len(line) < 10 {
			fields.Escala = line
		}
	}
}

func (p *Parser) parseFieldPatterns(text string, fields *models.StampFields) {
	set := func(dst *string, value string) {
		value = reTrailingLabel.ReplaceAllString(value, "")
		value = strings.TrimSpace(strings.ReplaceAll(value, "\t", " "))
		if *dst == "" && value != "" {
			*dst = value
		}
	}
	for _, fp := range tier2Patterns {
		match := fp.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		switch fp.field {
		case "projeto":
			set(&fields.Projeto, match[1])
		case "construtora":
			set(&fields.Construtora, match[1])
		case "empreendimento":
			set(&fields.Empreendimento, match[1])
		case "endereco":
			set(&fields.Endereco, match[1])
		case "autor":
			set(&fields.Autor, match[1])
		case "arquivo":
			set(&fields.Arquivo, match[1])
		}
	}
}

// recoverEndereco searches a ±2000-char window around the development
// name (or the whole text when it is unknown) for an address-shaped
// run of text.
func (p *Parser) recoverEndereco(text, empreendimento string) string {
	window := text
	if empreendimento != "" {
		if idx := strings.Index(text, empreendimento); idx >= 0 {
			start := max(0, idx-2000)
			end := min(len(text), idx+2000)
			window = text[start:end]
		}
	}
	if match := reEnderecoRecovery.FindString(window); match != "" {
		return strings.TrimSpace(match)
	}
	return ""
}

// isAddressLine is the address heuristic used under the label-block
// layout: a comma, a minimum length and a street-type keyword.
func isAddressLine(line string) bool {
	if !strings.Contains(line, ",") || len(line) <= 15 {
		return false
	}
	upper := strings.ToUpper(line)
	for _, kw := range streetKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// Merge combines stamps parsed from multiple pages. For free-text
// fields the longest non-empty value wins, a proxy for completeness;
// for drawing-control fields the last non-empty value in encounter
// order wins, a proxy for the most recent stamp revision.
func Merge(stamps []models.StampFields) models.StampFields {
	var merged models.StampFields

	longest := func(dst *string, value string) {
		if len(value) > len(*dst) {
			*dst = value
		}
	}
	last := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}

	for _, s := range stamps {
		longest(&merged.Construtora, s.Construtora)
		longest(&merged.Empreendimento, s.Empreendimento)
		longest(&merged.Endereco, s.Endereco)
		longest(&merged.Projeto, s.Projeto)
		longest(&merged.Autor, s.Autor)
		last(&merged.Revisao, s.Revisao)
		last(&merged.Data, s.Data)
		last(&merged.Escala, s.Escala)
		last(&merged.Arquivo, s.Arquivo)
	}
	return merged
}

var reNumberedPavimento = regexp.MustCompile(`(\d+)[ºº°]\s*(?:pavimento|pav)`)

// ExtractTipologia identifies the sheet typology (which floor or view
// the drawing depicts) from its text.
func ExtractTipologia(text string) string {
	lower := strings.ToLower(text)

	tipologias := []struct {
		tipo     string
		keywords []string
	}{
		{"subsolo", []string{"subsolo", "sub-solo", "sub solo"}},
		{"térreo", []string{"térreo", "terreo", "tér"}},
		{"tipo", []string{"pavimento tipo", "pav tipo", "pav. tipo"}},
		{"cobertura", []string{"cobertura", "coberta", "cobert"}},
		{"corte", []string{"corte esquemático", "corte esquematico"}},
	}
	for _, t := range tipologias {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.tipo
			}
		}
	}

	if match := reNumberedPavimento.FindStringSubmatch(lower); match != nil {
		return match[1] + "º pavimento"
	}
	return ""
}
