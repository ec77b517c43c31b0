package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCanonical(t *testing.T) {
	mapper := NewMapper()

	tests := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{"exact cable variant", "CAT-6", "cat6", true},
		{"exact with extra whitespace", "  cat   6  ", "cat6", true},
		{"point inside longer line", "Ponto RJ-45 junto ao rodapé", "point_rj45", true},
		{"accented camera", "Câmera Dome", "cam_dome", true},
		{"coaxial cable", "cabo coaxial RG6", "rg6_u90", true},
		{"splitter variant", "DIVISOR 1X4", "div_1_4", true},
		{"floor label", "Térreo", "terreo", true},
		{"unknown term", "luminária de emergência", "", false},
		{"empty input", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapper.FindCanonical(tt.input)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Canonical keys must map to themselves, otherwise a second
// normalization pass would corrupt already-normalized data.
func TestFindCanonicalIdempotent(t *testing.T) {
	mapper := NewMapper()
	for _, e := range canonicalTable {
		got, ok := mapper.FindCanonical(e.Key)
		if !ok {
			// Keys that are not themselves variants (e.g. rg6_u90) are
			// allowed to miss; they must not map to a different key.
			continue
		}
		assert.Equal(t, e.Key, got, "key %q must be a fixed point", e.Key)
	}
}

// Ambiguous inputs resolve by declaration order of the synonym table.
func TestFindCanonicalDeclarationOrder(t *testing.T) {
	mapper := NewMapper()

	// "tipo" is a variant of pavimento_tipo; "pavimento tipo 1/2" also
	// contains the div_1_2 variant "1/2", which is declared earlier.
	got, ok := mapper.FindCanonical("pavimento tipo 1/2")
	require.True(t, ok)
	assert.Equal(t, "div_1_2", got)
}

func TestExtractDiameter(t *testing.T) {
	mapper := NewMapper()

	tests := []struct {
		name      string
		input     string
		mm        int
		polegadas string
		found     bool
	}{
		{"millimeters with symbol", "eletroduto Ø25mm", 25, "", true},
		{"millimeters plain", "tubulação 32 mm", 32, "", true},
		{"inches fraction", `eletroduto 3/4"`, 0, "3/4", true},
		{"both units", `Ø25mm (1")`, 25, "1", true},
		{"no diameter", "caixa de passagem", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := mapper.ExtractDiameter(tt.input)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.mm, d.MM)
			assert.Equal(t, tt.polegadas, d.Polegadas)
		})
	}
}

func TestExtractAltura(t *testing.T) {
	mapper := NewMapper()

	tests := []struct {
		name  string
		input string
		want  float64
		found bool
	}{
		{"comma decimal", "tomada H=1,40m", 1.4, true},
		{"dot decimal", "ponto H=0.30m", 0.3, true},
		{"integer", "h=2m", 2, true},
		{"spaced", "H = 1,10 m", 1.1, true},
		{"absent", "tomada baixa", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapper.ExtractAltura(tt.input)
			assert.Equal(t, tt.found, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestExtractDivisor(t *testing.T) {
	mapper := NewMapper()

	got, ok := mapper.ExtractDivisor("instalar divisor 1/4 no shaft")
	require.True(t, ok)
	assert.Equal(t, "div_1_4", got)

	got, ok = mapper.ExtractDivisor("divisor 1x3")
	require.True(t, ok)
	assert.Equal(t, "div_1_3", got)

	_, ok = mapper.ExtractDivisor("sem divisores aqui")
	assert.False(t, ok)
}

func TestExtractStampTokens(t *testing.T) {
	mapper := NewMapper()

	rev, ok := mapper.ExtractRevisao("REV. 03")
	require.True(t, ok)
	assert.Equal(t, "03", rev)

	rev, ok = mapper.ExtractRevisao("rev:b")
	require.True(t, ok)
	assert.Equal(t, "B", rev)

	data, ok := mapper.ExtractData("emitido em 12-05-2024")
	require.True(t, ok)
	assert.Equal(t, "12/05/2024", data)

	escala, ok := mapper.ExtractEscala("ESCALA 1:75")
	require.True(t, ok)
	assert.Equal(t, "1:75", escala)

	escala, ok = mapper.ExtractEscala("esc. 1/100")
	require.True(t, ok)
	assert.Equal(t, "1:100", escala)
}
