package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/clearpost/letter-clarity-service/internal/config"
	"github.com/clearpost/letter-clarity-service/internal/extract"
	"github.com/clearpost/letter-clarity-service/internal/letter"
	"github.com/clearpost/letter-clarity-service/internal/normalize"
	"github.com/clearpost/letter-clarity-service/internal/summarize"
	"github.com/clearpost/letter-clarity-service/internal/types"
)

var (
	cfg config.Config
	log = logrus.New()

	requestSem *semaphore.Weighted
	ocrSem     *semaphore.Weighted

	metrics = &serverMetrics{}
)

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}
func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}
func (m *serverMetrics) get() (total, active int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs
}

// translator is what the HTTP layer needs from the request processor.
type translator interface {
	ProcessUpload(ctx context.Context, data []byte, declaredType, language string) (types.SummaryResult, error)
	Resubmit(ctx context.Context, text, language string) (types.SummaryResult, error)
}

func main() {
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	requestSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	ocrSem = semaphore.NewWeighted(cfg.MaxOCRConcurrent)

	opts := []openai.Option{
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		log.WithError(err).Fatal("llm client init failed")
	}

	limiter := rate.NewLimiter(rate.Every(cfg.LLMRateEvery), cfg.LLMRateBurst)
	summ := summarize.New(llm, limiter, cfg.LLMTimeout)

	var extractor extract.Extractor
	if cfg.Strategy == config.StrategyTesseract {
		extractor = extract.NewTesseract(cfg.OCRLanguages)
	}

	proc := letter.New(cfg, normalize.New(cfg), extractor, summ, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/metrics", handleMetrics)

	mux.HandleFunc("/api/translate",
		withMethod("POST",
			withConcurrencyLimit(func(w http.ResponseWriter, r *http.Request) {
				handleTranslate(w, r, proc)
			})))

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           withLogging(withRecovery(mux)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	go reportStats()

	log.WithFields(logrus.Fields{
		"addr":     srv.Addr,
		"strategy": cfg.Strategy,
		"model":    cfg.Model,
	}).Info("letter clarity service listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func reportStats() {
	interval := cfg.StatsInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active := metrics.get()
		log.WithFields(logrus.Fields{
			"active":     active,
			"total":      total,
			"goroutines": runtime.NumGoroutine(),
			"memMB":      m.Alloc / (1 << 20),
		}).Info("stats")
	}
}

// ---------- Handlers ----------

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": "1.0.0",
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active := metrics.get()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

func handleTranslate(w http.ResponseWriter, r *http.Request, proc translator) {
	ctx, cancel := context.WithTimeout(r.Context(), cfg.TranslateTimeout)
	defer cancel()

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		handleUpload(ctx, w, r, proc)
		return
	}

	req, err := parseJSON[types.ResubmitRequest](r, cfg.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeErr(w, http.StatusBadRequest, "validation_failed", "text required")
		return
	}

	result, err := proc.Resubmit(ctx, req.Text, req.Language)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleUpload(ctx context.Context, w http.ResponseWriter, r *http.Request, proc translator) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(cfg.MaxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "Could not parse upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "Could not read upload")
		return
	}

	// OCR capacity gating: the embedded engine is the scarce resource.
	if cfg.Strategy == config.StrategyTesseract {
		if err := ocrSem.Acquire(ctx, 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "ocr_capacity", "OCR at capacity")
			return
		}
		defer ocrSem.Release(1)
	}

	declaredType := header.Header.Get("Content-Type")
	result, err := proc.ProcessUpload(ctx, data, declaredType, r.FormValue("language"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := types.KindOf(err)
	log.WithFields(logrus.Fields{
		"path": sanitizeLogString(r.URL.Path),
		"kind": kind,
	}).WithError(err).Error("translate request failed")
	writeErr(w, types.HTTPStatus(kind), string(kind), types.UserMessage(err))
}

// ---------- Middleware ----------

func withMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method must be "+method)
			return
		}
		next(w, r)
	}
}

func withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestSem.Acquire(r.Context(), 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
			return
		}
		defer requestSem.Release(1)

		metrics.incActive()
		defer metrics.decActive()

		next(w, r)
	}
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.WithField("panic", err).Error("recovered from panic")
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrapWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     sanitizeLogString(r.URL.Path),
			"status":   ww.status,
			"duration": time.Since(start),
		}).Info("request")
	})
}

type wrapWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrapWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// ---------- Helpers ----------

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return out, err
	}

	// Ensure there's nothing else after the first JSON value
	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			return out, fmt.Errorf("unexpected trailing data")
		}
		return out, err
	}

	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": message,
		"code":  code,
	})
}
