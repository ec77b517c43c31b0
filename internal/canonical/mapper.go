// Package canonical normalizes free-text terms from engineering drawings
// (cable types, point types, floor labels) to canonical keys, and exposes
// the regex-based attribute extractors shared by the item extractor and
// the stamp parser.
package canonical

import (
	"regexp"
	"strconv"
	"strings"
)

// entry associates a canonical key with its known surface variants.
// Declaration order matters: the substring fallback in FindCanonical
// scans variants in this order and the first hit wins, so reordering
// the table changes behavior on ambiguous inputs.
type entry struct {
	Key      string
	Variants []string
}

var canonicalTable = []entry{
	// Cabos
	{"cat6", []string{"cat-6", "cat 6", "cat6", "categoria 6", "u/utp cat6"}},
	{"rg6_u90", []string{"rg-06/u#90%", "rg06/u#90%", "rg-6", "rg6", "rg-06 u#90", "coaxial rg6"}},
	{"cci2", []string{"cci-2", "cci 2", "cci2", "cabo cci2"}},
	{"mb10", []string{"mb-10", "mb 10", "mb10", "caixa mb10"}},

	// Pontos
	{"point_rj45", []string{"rj-45", "rj45", "ponto rj45", "ponto de dados", "tomada rj45"}},
	{"point_tv_coletiva", []string{"tv coletiva", "tv col", "ponto tv col"}},
	{"point_tv_assinatura", []string{"tv assinatura", "tv ass", "ponto tv ass"}},
	{"point_telefone", []string{"telefone", "tel", "ponto tel"}},
	{"point_interfone", []string{"interfone", "interf", "ponto interfone"}},

	// Wi-Fi
	{"wifi_indoor", []string{"wifi indoor", "wi-fi indoor", "roteador indoor", "ap indoor"}},
	{"wifi_outdoor", []string{"wifi outdoor", "wi-fi outdoor", "roteador outdoor", "ap outdoor"}},

	// Câmeras
	{"cam_bullet", []string{"camera bullet", "câmera bullet", "cam bullet", "bullet"}},
	{"cam_dome", []string{"camera dome", "câmera dome", "cam dome", "dome"}},

	// Divisores
	{"div_1_2", []string{"divisor 1/2", "div 1/2", "1/2", "divisor 1x2"}},
	{"div_1_3", []string{"divisor 1/3", "div 1/3", "1/3", "divisor 1x3"}},
	{"div_1_4", []string{"divisor 1/4", "div 1/4", "1/4", "divisor 1x4"}},
	{"div_1_5", []string{"divisor 1/5", "div 1/5", "1/5", "divisor 1x5"}},

	// Infraestrutura
	{"quadro_vdi", []string{"quadro vdi", "qvdi", "quadro de distribuição"}},
	{"dg", []string{"d.g.", "dg", "distribuição geral"}},
	{"rack", []string{"rack", "bastidor"}},

	// Pavimentos
	{"subsolo", []string{"subsolo", "sub-solo", "sub"}},
	{"terreo", []string{"térreo", "terreo", "tér"}},
	{"pavimento_tipo", []string{"pavimento tipo", "pav tipo", "tipo"}},
	{"cobertura", []string{"cobertura", "coberta", "cob"}},
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reDiameterMM = regexp.MustCompile(`[∅Ø]?\s*(\d+)\s*mm`)
	reDiameterIn = regexp.MustCompile(`(\d+(?:/\d+)?)\s*["']`)
	reAltura     = regexp.MustCompile(`[Hh]\s*=\s*(\d+(?:[,.]\d+)?)\s*m`)
	reDivisor    = regexp.MustCompile(`divisor\s+1[/x](\d)`)
	reRevisao    = regexp.MustCompile(`rev(?:\.|:)?\s*(\w+)`)
	reData       = regexp.MustCompile(`(\d{2})[/-](\d{2})[/-](\d{4})`)
	reEscala     = regexp.MustCompile(`(?:escala|esc\.?)\s*[:\-]?\s*1[:/](\d+)`)
)

// Mapper resolves free-text terms to canonical keys via a reverse index
// built once from the static synonym table.
type Mapper struct {
	exact map[string]string
	// ordered keeps (variant, key) pairs in table declaration order for
	// the substring fallback. Substring matching can false-positive on
	// short variants ("1/2" inside longer numeric strings); declaration
	// order is the tie-break.
	ordered []variantPair
}

type variantPair struct {
	variant string
	key     string
}

// NewMapper builds the reverse index over the synonym table.
func NewMapper() *Mapper {
	m := &Mapper{exact: make(map[string]string)}
	for _, e := range canonicalTable {
		for _, v := range e.Variants {
			lower := strings.ToLower(v)
			if _, dup := m.exact[lower]; !dup {
				m.exact[lower] = e.Key
			}
			m.ordered = append(m.ordered, variantPair{variant: lower, key: e.Key})
		}
	}
	return m
}

// NormalizeText lower-cases and collapses whitespace for lookup.
func (m *Mapper) NormalizeText(text string) string {
	text = strings.ToLower(text)
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FindCanonical returns the canonical key for a term. Exact reverse-index
// hits win; otherwise every variant is scanned for substring containment
// in either direction and the first match in table order wins.
func (m *Mapper) FindCanonical(text string) (string, bool) {
	norm := m.NormalizeText(text)
	if norm == "" {
		return "", false
	}
	if key, ok := m.exact[norm]; ok {
		return key, true
	}
	for _, p := range m.ordered {
		if strings.Contains(norm, p.variant) || strings.Contains(p.variant, norm) {
			return p.key, true
		}
	}
	return "", false
}

// Diameter is a conduit diameter in millimeters and/or inches.
type Diameter struct {
	MM        int
	Polegadas string
}

// ExtractDiameter extracts a diameter from text. Both units are probed
// independently; ok is false when neither matches.
func (m *Mapper) ExtractDiameter(text string) (Diameter, bool) {
	var d Diameter
	var found bool
	if match := reDiameterMM.FindStringSubmatch(text); match != nil {
		d.MM, _ = strconv.Atoi(match[1])
		found = true
	}
	if match := reDiameterIn.FindStringSubmatch(text); match != nil {
		d.Polegadas = match[1]
		found = true
	}
	return d, found
}

// ExtractAltura extracts an installation height in meters, accepting
// comma as the decimal separator ("H=1,40m" reads as 1.4).
func (m *Mapper) ExtractAltura(text string) (float64, bool) {
	match := reAltura.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractDivisor extracts a splitter ratio ("divisor 1/4" → "div_1_4").
func (m *Mapper) ExtractDivisor(text string) (string, bool) {
	match := reDivisor.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return "div_1_" + match[1], true
}

// ExtractRevisao extracts a revision token ("REV. B" → "B").
func (m *Mapper) ExtractRevisao(text string) (string, bool) {
	match := reRevisao.FindStringSubmatch(strings.ToLower(text))
	if match == nil {
		return "", false
	}
	return strings.ToUpper(match[1]), true
}

// ExtractData extracts a date in dd/mm/yyyy form, accepting "-" as the
// separator on input.
func (m *Mapper) ExtractData(text string) (string, bool) {
	match := reData.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1] + "/" + match[2] + "/" + match[3], true
}

// ExtractEscala extracts a drawing scale ("ESC 1:100" → "1:100").
func (m *Mapper) ExtractEscala(text string) (string, bool) {
	match := reEscala.FindStringSubmatch(strings.ToLower(text))
	if match == nil {
		return "", false
	}
	return "1:" + match[1], true
}
