package letter

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clearpost/letter-clarity-service/internal/config"
	"github.com/clearpost/letter-clarity-service/internal/extract"
	"github.com/clearpost/letter-clarity-service/internal/normalize"
	"github.com/clearpost/letter-clarity-service/internal/summarize"
	"github.com/clearpost/letter-clarity-service/internal/types"
)

// Normalizer turns an upload into recognition-ready input.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, declaredType string) (normalize.Result, error)
}

// Summarizer produces the structured summary for text or image input.
type Summarizer interface {
	Summarize(ctx context.Context, req summarize.Request) (types.SummaryResult, error)
}

// Processor runs a single translate request end to end:
// normalize -> extract -> summarize. The extractor is nil in the vision
// strategy, where the model performs extraction during the summarize call.
type Processor struct {
	cfg       config.Config
	norm      Normalizer
	extractor extract.Extractor
	summ      Summarizer
	log       *logrus.Logger
}

func New(cfg config.Config, norm Normalizer, ext extract.Extractor, summ Summarizer, log *logrus.Logger) *Processor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{cfg: cfg, norm: norm, extractor: ext, summ: summ, log: log}
}

// ProcessUpload handles a fresh file upload.
func (p *Processor) ProcessUpload(ctx context.Context, data []byte, declaredType, language string) (types.SummaryResult, error) {
	language = p.language(language)
	started := time.Now()

	log := p.log.WithFields(logrus.Fields{
		"mime":     declaredType,
		"language": language,
		"strategy": p.cfg.Strategy,
	})

	log.WithField("stage", "normalize").Debug("normalizing upload")
	res, err := p.norm.Normalize(ctx, data, declaredType)
	if err != nil {
		return types.SummaryResult{}, err
	}

	req := summarize.Request{Language: language}
	switch {
	case res.Text != "":
		// PDF text layer was good enough; no image recognition needed.
		req.Text = res.Text
	case p.extractor != nil:
		log.WithField("stage", "extract").Debug("running local recognition")
		ocrCtx, cancel := context.WithTimeout(ctx, p.cfg.OCRTimeout)
		text, err := p.extractor.Recognize(ocrCtx, res.JPEG)
		cancel()
		if err != nil {
			return types.SummaryResult{}, err
		}
		req.Text = text
	default:
		req.ImageJPEG = res.JPEG
	}

	log.WithField("stage", "summarize").Debug("requesting summary")
	result, err := p.summ.Summarize(ctx, req)
	if err != nil {
		return types.SummaryResult{}, err
	}

	log.WithFields(logrus.Fields{
		"stage":    "completed",
		"actions":  len(result.Actions),
		"source":   result.TextSource,
		"duration": time.Since(started),
	}).Info("letter processed")
	return result, nil
}

// Resubmit re-translates previously recognized text into a new target
// language. Normalization and extraction are skipped entirely.
func (p *Processor) Resubmit(ctx context.Context, text, language string) (types.SummaryResult, error) {
	language = p.language(language)

	p.log.WithFields(logrus.Fields{
		"stage":    "summarize",
		"language": language,
	}).Debug("re-summarizing resubmitted text")

	return p.summ.Summarize(ctx, summarize.Request{Text: text, Language: language})
}

func (p *Processor) language(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return p.cfg.DefaultLanguage
	}
	return language
}
