// Package generate produces the prose sections of the memorial
// descritivo from the consolidated master data, using an LLM
// text-generation backend.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"memorial/internal/logger"
	"memorial/pkg/models"
)

// Service generates one memorial section from the master data.
type Service interface {
	// GenerateSection returns the prose for sectionID. The master data
	// is the complete grounding context; the generator must not invent
	// quantities or locations beyond it.
	GenerateSection(ctx context.Context, sectionID string, master *models.MasterData) (string, error)
}

// Section ids and their writing briefs, in document order.
var sectionPrompts = []struct {
	ID    string
	Title string
	Brief string
}{
	{"apresentacao", "Apresentação",
		"Apresente o empreendimento, a construtora e o objetivo do memorial descritivo de telecomunicações."},
	{"infraestrutura", "Infraestrutura",
		"Descreva a infraestrutura de tubulação, caixas de passagem e encaminhamentos entre pavimentos."},
	{"servicos", "Serviços",
		"Descreva cada serviço previsto (voz, dados, vídeo, intercomunicação, monitoramento) e seus pontos por pavimento."},
	{"salas_tecnicas", "Salas Técnicas",
		"Descreva as salas técnicas, sua localização e requisitos de instalação."},
	{"normas", "Normas Aplicáveis",
		"Liste e contextualize as normas técnicas aplicáveis ao projeto."},
}

// SectionIDs returns the generated-document section ids in order.
func SectionIDs() []string {
	ids := make([]string, len(sectionPrompts))
	for i, s := range sectionPrompts {
		ids[i] = s.ID
	}
	return ids
}

// Config tunes the OpenAI-backed generator.
type Config struct {
	Model       string
	Temperature float32
	MaxRetries  int
}

// OpenAIGenerator implements Service on the OpenAI chat-completion
// API.
type OpenAIGenerator struct {
	client *openai.Client
	config Config
	log    zerolog.Logger
}

// NewOpenAIGenerator creates the generator. The key and model come
// from the caller's configuration; an empty model falls back to the
// default.
func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for section generation")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	return NewOpenAIGeneratorWithDeps(openai.NewClient(apiKey), Config{
		Model:       model,
		Temperature: 0.3,
		MaxRetries:  3,
	}), nil
}

// NewOpenAIGeneratorWithDeps creates the generator with explicit
// dependencies.
func NewOpenAIGeneratorWithDeps(client *openai.Client, config Config) *OpenAIGenerator {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	return &OpenAIGenerator{
		client: client,
		config: config,
		log:    logger.WithComponent("generate"),
	}
}

// GenerateSection renders one section's prose, retrying transient API
// failures.
func (g *OpenAIGenerator) GenerateSection(ctx context.Context, sectionID string, master *models.MasterData) (string, error) {
	const op = "GenerateSection"

	brief, title, err := lookupSection(sectionID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	prompt, err := buildPrompt(title, brief, master)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	g.log.Debug().
		Str("section", sectionID).
		Str("model", g.config.Model).
		Int("prompt_length", len(prompt)).
		Msg("Requesting section generation")

	var lastErr error
	for attempt := 1; attempt <= g.config.MaxRetries; attempt++ {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.config.Model,
			Temperature: g.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens: 1500,
		})
		if err != nil {
			lastErr = err
			g.log.Warn().
				Err(err).
				Str("section", sectionID).
				Int("attempt", attempt).
				Msg("Generation request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices")
			continue
		}

		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		g.log.Info().
			Str("section", sectionID).
			Int("length", len(text)).
			Int("attempt", attempt).
			Msg("Section generated")
		return text, nil
	}
	return "", fmt.Errorf("%s: all %d attempts failed, last error: %w", op, g.config.MaxRetries, lastErr)
}

const systemPrompt = `Você é um engenheiro de telecomunicações redigindo um memorial ` +
	`descritivo de projeto predial em português técnico formal. Escreva com base ` +
	`EXCLUSIVAMENTE nos dados fornecidos: nunca invente quantidades, pavimentos, ` +
	`equipamentos ou normas que não constem dos dados. Prosa corrida, sem listas ` +
	`numeradas, sem repetir o título da seção.`

func lookupSection(sectionID string) (brief, title string, err error) {
	for _, s := range sectionPrompts {
		if s.ID == sectionID {
			return s.Brief, s.Title, nil
		}
	}
	return "", "", fmt.Errorf("unknown section: %s", sectionID)
}

func buildPrompt(title, brief string, master *models.MasterData) (string, error) {
	data, err := json.MarshalIndent(master, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode master data: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Redija a seção \"%s\" do memorial descritivo.\n\n", title))
	sb.WriteString(brief)
	sb.WriteString("\n\nDados consolidados do projeto (JSON):\n")
	sb.Write(data)
	return sb.String(), nil
}
