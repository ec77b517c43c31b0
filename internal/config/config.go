package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"memorial/internal/logger"
)

// OCR engine selection values.
const (
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// Config is the explicit configuration of one pipeline run. It is
// constructed once at process start and passed to component
// constructors; no component reads the environment on its own.
type Config struct {
	// OCR engine
	OCREngine        string // "vision" or "documentai"
	OCRConfigVersion string // part of the cache key; bump to invalidate cached OCR
	OCRCacheDir      string
	OCRLanguages     []string
	OCRWhitelist     string // charset constraint for title-block OCR

	// Google Cloud
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// LLM (section-generation glue only)
	OpenAIAPIKey string
	LLMModel     string

	// Extraction
	OutDir             string
	DPI                int
	MinTextLength      int // native-text validity threshold, in characters
	MaxWorkers         int // 0 = min(NumCPU, 4)
	TaskTimeoutSeconds int // per-document worker timeout

	// Fixed-proportion ROIs (fractions of page width/height)
	CarimboXStart float64
	CarimboYStart float64
	LegendaXStart float64
	LegendaYStart float64

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	config := &Config{
		OCREngine:        getEnv("OCR_ENGINE", EngineVision),
		OCRConfigVersion: getEnv("OCR_CONFIG_VERSION", "v1"),
		OCRCacheDir:      getEnv("OCR_CACHE_DIR", "runtime/ocr_cache"),
		OCRLanguages:     splitList(getEnv("OCR_LANGUAGES", "pt")),
		OCRWhitelist:     getEnv("OCR_WHITELIST", ""),

		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		LLMModel:     getEnv("LLM_MODEL", "gpt-4o"),

		OutDir:             getEnv("OUT_DIR", "out"),
		DPI:                getEnvInt("DPI", 300),
		MinTextLength:      getEnvInt("MIN_TEXT_LENGTH", 50),
		MaxWorkers:         getEnvInt("MAX_WORKERS", 0),
		TaskTimeoutSeconds: getEnvInt("TASK_TIMEOUT_SECONDS", 300),

		CarimboXStart: getEnvFloat("CARIMBO_X_START", 0.6),
		CarimboYStart: getEnvFloat("CARIMBO_Y_START", 0.7),
		LegendaXStart: getEnvFloat("LEGENDA_X_START", 0.0),
		LegendaYStart: getEnvFloat("LEGENDA_Y_START", 0.8),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case EngineVision:
	case EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for OCR_ENGINE=documentai")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for OCR_ENGINE=documentai")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", EngineVision, EngineDocumentAI, c.OCREngine)
	}
	if c.DPI <= 0 {
		return fmt.Errorf("DPI must be positive, got %d", c.DPI)
	}
	if c.MinTextLength <= 0 {
		return fmt.Errorf("MIN_TEXT_LENGTH must be positive, got %d", c.MinTextLength)
	}
	if c.TaskTimeoutSeconds <= 0 {
		return fmt.Errorf("TASK_TIMEOUT_SECONDS must be positive, got %d", c.TaskTimeoutSeconds)
	}
	for _, roi := range []struct {
		name  string
		value float64
	}{
		{"CARIMBO_X_START", c.CarimboXStart},
		{"CARIMBO_Y_START", c.CarimboYStart},
		{"LEGENDA_X_START", c.LegendaXStart},
		{"LEGENDA_Y_START", c.LegendaYStart},
	} {
		if roi.value < 0 || roi.value >= 1 {
			return fmt.Errorf("%s must be in [0,1), got %v", roi.name, roi.value)
		}
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
