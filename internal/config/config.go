package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"scan2epub/internal/apperr"
)

// OCRSettings configures the remote document-analysis (OCR) service.
type OCRSettings struct {
	Endpoint     string
	APIKey       string
	APIVersion   string
	AnalyzerID   string
	PollInterval time.Duration
	PollAttempts int
}

// LLMSettings configures the text-cleanup chat-completion service.
type LLMSettings struct {
	Endpoint          string
	APIKey            string
	Model             string
	MaxTokensPerChunk int
	MaxTokensResponse int
	Temperature       float32
	MaxRetries        int
	RetryDelay        time.Duration
	RequestTimeout    time.Duration
}

// StorageSettings configures the blob store used to stage local PDFs for the
// OCR service. ContainerURL is a pre-signed (SAS-style) container URL that
// grants create/read/delete on blobs beneath it.
type StorageSettings struct {
	ContainerURL     string
	MaxFileSizeBytes int64
	LogCleanup       bool
}

// TranslatorSettings configures the translation provider and the
// paragraph-level quality guard.
type TranslatorSettings struct {
	Endpoint              string
	APIKey                string
	Region                string
	APIVersion            string
	DefaultTarget         string
	AllowNoop             bool
	MinChangedRatio       float64
	MaxParagraphsPerBatch int
	MaxCharsPerBatch      int
	RequestTimeout        time.Duration
	MaxRetries            int
	RetryDelay            time.Duration
}

// ProcessingSettings holds run-wide toggles.
type ProcessingSettings struct {
	Debug            bool
	SaveInterim      bool
	CleanupOnFailure bool
	SkipPreflight    bool
	LedgerPath       string
}

// Config is the root configuration value object. It is built once at the CLI
// boundary and passed down by constructor injection; core packages never read
// the environment themselves.
type Config struct {
	OCR        OCRSettings
	LLM        LLMSettings
	Storage    StorageSettings
	Translator TranslatorSettings
	Processing ProcessingSettings
}

// Load reads configuration from the environment, providing sensible defaults.
// A .env file is honored when present (useful for development).
func Load() Config {
	_ = godotenv.Load()

	return Config{
		OCR: OCRSettings{
			Endpoint:     os.Getenv("OCR_ENDPOINT"),
			APIKey:       os.Getenv("OCR_API_KEY"),
			APIVersion:   getEnv("OCR_API_VERSION", "2025-05-01-preview"),
			AnalyzerID:   getEnv("OCR_ANALYZER_ID", "prebuilt-documentAnalyzer"),
			PollInterval: getEnvDuration("OCR_POLL_INTERVAL", 2*time.Second),
			PollAttempts: getEnvInt("OCR_POLL_ATTEMPTS", 60),
		},
		LLM: LLMSettings{
			Endpoint:          getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:            os.Getenv("OPENAI_API_KEY"),
			Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokensPerChunk: getEnvInt("CLEANUP_MAX_TOKENS_PER_CHUNK", 3000),
			MaxTokensResponse: getEnvInt("CLEANUP_MAX_TOKENS_RESPONSE", 4000),
			Temperature:       0.1,
			MaxRetries:        getEnvInt("CLEANUP_MAX_RETRIES", 3),
			RetryDelay:        getEnvDuration("CLEANUP_RETRY_DELAY", 2*time.Second),
			RequestTimeout:    getEnvDuration("CLEANUP_REQUEST_TIMEOUT", 120*time.Second),
		},
		Storage: StorageSettings{
			ContainerURL:     os.Getenv("BLOB_CONTAINER_URL"),
			MaxFileSizeBytes: int64(getEnvInt("MAX_UPLOAD_SIZE_BYTES", 500*1024*1024)),
			LogCleanup:       getEnvBool("STORAGE_LOG_CLEANUP", true),
		},
		Translator: TranslatorSettings{
			Endpoint:              getEnv("TRANSLATOR_ENDPOINT", "https://api.cognitive.microsofttranslator.com"),
			APIKey:                os.Getenv("TRANSLATOR_API_KEY"),
			Region:                os.Getenv("TRANSLATOR_REGION"),
			APIVersion:            getEnv("TRANSLATOR_API_VERSION", "3.0"),
			DefaultTarget:         getEnv("TRANSLATOR_DEFAULT_TARGET", "en"),
			AllowNoop:             getEnvBool("TRANSLATOR_ALLOW_NOOP", false),
			MinChangedRatio:       getEnvFloat("TRANSLATOR_MIN_CHANGED_RATIO", 0.0),
			MaxParagraphsPerBatch: getEnvInt("TRANSLATOR_MAX_PARAGRAPHS_PER_BATCH", 100),
			MaxCharsPerBatch:      getEnvInt("TRANSLATOR_MAX_CHARS_PER_BATCH", 30000),
			RequestTimeout:        getEnvDuration("TRANSLATOR_REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:            getEnvInt("TRANSLATOR_MAX_RETRIES", 3),
			RetryDelay:            getEnvDuration("TRANSLATOR_RETRY_DELAY", 2*time.Second),
		},
		Processing: ProcessingSettings{
			Debug:            getEnvBool("SCAN2EPUB_DEBUG", false),
			SaveInterim:      getEnvBool("SCAN2EPUB_SAVE_INTERIM", false),
			CleanupOnFailure: getEnvBool("SCAN2EPUB_CLEANUP_ON_FAILURE", true),
			SkipPreflight:    getEnvBool("SCAN2EPUB_SKIP_PREFLIGHT", false),
			LedgerPath:       getEnv("SCAN2EPUB_LEDGER_PATH", "./data/runs.db"),
		},
	}
}

// ValidateOCR checks the settings required before any OCR work starts.
func (c Config) ValidateOCR() error {
	if c.OCR.Endpoint == "" || c.OCR.APIKey == "" {
		return apperr.New(apperr.KindConfig, "OCR_ENDPOINT and OCR_API_KEY must be set")
	}
	return nil
}

// ValidateLLM checks the settings required before cleanup starts.
func (c Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return apperr.New(apperr.KindConfig, "OPENAI_API_KEY must be set")
	}
	return nil
}

// ValidateStorage checks the settings required before a local upload.
func (c Config) ValidateStorage() error {
	if c.Storage.ContainerURL == "" {
		return apperr.New(apperr.KindConfig, "BLOB_CONTAINER_URL must be set")
	}
	return nil
}

// ValidateTranslator checks the settings required before translation starts.
func (c Config) ValidateTranslator() error {
	if c.Translator.APIKey == "" {
		return apperr.New(apperr.KindConfig, "TRANSLATOR_API_KEY must be set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
