package generate

import (
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial/pkg/models"
)

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator("", "gpt-4o")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewOpenAIGeneratorConfig(t *testing.T) {
	g, err := NewOpenAIGenerator("test-key", "")
	require.NoError(t, err)
	assert.Equal(t, openai.GPT4oMini, g.config.Model)

	g, err = NewOpenAIGenerator("test-key", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", g.config.Model)
}

func TestSectionIDsOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"apresentacao", "infraestrutura", "servicos", "salas_tecnicas", "normas"},
		SectionIDs())
}

func TestBuildPromptEmbedsMasterData(t *testing.T) {
	master := &models.MasterData{
		Obra:     models.Obra{Empreendimento: "Torre Norte"},
		Servicos: []string{"dados"},
	}

	prompt, err := buildPrompt("Serviços", "Descreva cada serviço previsto.", master)
	require.NoError(t, err)
	assert.True(t, strings.Contains(prompt, "Torre Norte"))
	assert.True(t, strings.Contains(prompt, "Serviços"))
	assert.True(t, strings.Contains(prompt, "dados"))
}
