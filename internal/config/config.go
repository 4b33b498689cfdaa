package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Extraction strategies. Vision sends the normalized image straight to the
// LLM and lets it return the recognized text; tesseract runs a local OCR
// pass first and sends plain text.
const (
	StrategyVision    = "vision"
	StrategyTesseract = "tesseract"
)

type Config struct {
	// Server
	Port string

	// Secrets
	OpenAIAPIKey string

	// LLM
	Model           string
	OpenAIBaseURL   string
	DefaultLanguage string

	// Extraction
	Strategy     string
	OCRLanguages []string

	// Image pipeline
	JPEGQuality int

	// Limits
	MaxUploadBytes   int64
	MaxJSONBodyBytes int64

	// Concurrency
	MaxConcurrentRequests int64
	MaxOCRConcurrent      int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Stage timeouts
	TranslateTimeout time.Duration
	ConvertTimeout   time.Duration
	OCRTimeout       time.Duration
	LLMTimeout       time.Duration

	// PDF handling
	PDFMaxPages    int
	PDFRasterDPI   int
	PDFMinWords    int
	PDFInfoTimeout time.Duration
	PDFTextTimeout time.Duration
	PDFPpmTimeout  time.Duration

	// Outbound LLM pacing
	LLMRateEvery time.Duration
	LLMRateBurst int

	// housekeeping
	StatsInterval time.Duration

	// health
	HealthDegradeRatio float64

	// http
	MaxHeaderBytes int
}

func Load() Config {
	return Config{
		Port: envStr("PORT", "8080"),

		OpenAIAPIKey: envStr("OPENAI_API_KEY", ""),

		Model:           envStr("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", ""),
		DefaultLanguage: envStr("DEFAULT_LANGUAGE", "english"),

		Strategy:     envStr("EXTRACTION_STRATEGY", StrategyVision),
		OCRLanguages: envList("OCR_LANGUAGES", "deu"),

		JPEGQuality: envInt("JPEG_QUALITY", 60),

		MaxUploadBytes:   int64(envInt("MAX_UPLOAD_BYTES", 20<<20)),
		MaxJSONBodyBytes: int64(envInt("MAX_JSON_BODY_BYTES", 1<<20)),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxOCRConcurrent:      int64(envInt("MAX_OCR_CONCURRENT", 3)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		TranslateTimeout: envDur("TRANSLATE_TIMEOUT", 120*time.Second),
		ConvertTimeout:   envDur("CONVERT_TIMEOUT", 20*time.Second),
		OCRTimeout:       envDur("OCR_TIMEOUT", 60*time.Second),
		LLMTimeout:       envDur("LLM_TIMEOUT", 90*time.Second),

		PDFMaxPages:    envInt("PDF_MAX_PAGES", 4),
		PDFRasterDPI:   envInt("PDF_RASTER_DPI", 200),
		PDFMinWords:    envInt("PDF_MIN_WORDS", 20),
		PDFInfoTimeout: envDur("PDFINFO_TIMEOUT", 5*time.Second),
		PDFTextTimeout: envDur("PDFTOTEXT_TIMEOUT", 10*time.Second),
		PDFPpmTimeout:  envDur("PDFTOPPM_TIMEOUT", 20*time.Second),

		LLMRateEvery: envDur("LLM_RATE_EVERY", 500*time.Millisecond),
		LLMRateBurst: envInt("LLM_RATE_BURST", 5),

		StatsInterval: envDur("STATS_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Strategy != StrategyVision && c.Strategy != StrategyTesseract {
		return fmt.Errorf("EXTRACTION_STRATEGY must be %q or %q", StrategyVision, StrategyTesseract)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be in 1..100")
	}
	return nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envList(key, fallback string) []string {
	raw := envStr(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
