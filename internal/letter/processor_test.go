package letter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearpost/letter-clarity-service/internal/config"
	"github.com/clearpost/letter-clarity-service/internal/normalize"
	"github.com/clearpost/letter-clarity-service/internal/summarize"
	"github.com/clearpost/letter-clarity-service/internal/types"
)

type mockNormalizer struct {
	calls int
	res   normalize.Result
	err   error
}

func (m *mockNormalizer) Normalize(ctx context.Context, data []byte, declaredType string) (normalize.Result, error) {
	m.calls++
	return m.res, m.err
}

type mockExtractor struct {
	calls int
	got   []byte
	text  string
	err   error
}

func (m *mockExtractor) Recognize(ctx context.Context, jpeg []byte) (string, error) {
	m.calls++
	m.got = jpeg
	return m.text, m.err
}

type mockSummarizer struct {
	calls  int
	reqs   []summarize.Request
	result types.SummaryResult
	err    error
}

func (m *mockSummarizer) Summarize(ctx context.Context, req summarize.Request) (types.SummaryResult, error) {
	m.calls++
	m.reqs = append(m.reqs, req)
	return m.result, m.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testCfg(strategy string) config.Config {
	return config.Config{
		Strategy:        strategy,
		DefaultLanguage: "english",
		OCRTimeout:      time.Second,
	}
}

func TestResubmitSkipsNormalizeAndExtract(t *testing.T) {
	norm := &mockNormalizer{}
	ext := &mockExtractor{}
	summ := &mockSummarizer{result: types.SummaryResult{Success: true}}
	p := New(testCfg(config.StrategyTesseract), norm, ext, summ, quietLogger())

	_, err := p.Resubmit(context.Background(), "previously recognized text", "german")
	require.NoError(t, err)

	assert.Zero(t, norm.calls)
	assert.Zero(t, ext.calls)
	require.Equal(t, 1, summ.calls)
	assert.Equal(t, "previously recognized text", summ.reqs[0].Text)
	assert.Equal(t, "german", summ.reqs[0].Language)
	assert.Nil(t, summ.reqs[0].ImageJPEG)
}

func TestProcessUploadTesseractPath(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}
	norm := &mockNormalizer{res: normalize.Result{JPEG: jpeg}}
	ext := &mockExtractor{text: "Rechnung über 42,80 EUR"}
	summ := &mockSummarizer{result: types.SummaryResult{Success: true}}
	p := New(testCfg(config.StrategyTesseract), norm, ext, summ, quietLogger())

	_, err := p.ProcessUpload(context.Background(), []byte("upload"), "image/jpeg", "")
	require.NoError(t, err)

	require.Equal(t, 1, ext.calls)
	assert.Equal(t, jpeg, ext.got, "extractor must receive the normalized image")
	require.Equal(t, 1, summ.calls)
	assert.Equal(t, "Rechnung über 42,80 EUR", summ.reqs[0].Text)
	assert.Nil(t, summ.reqs[0].ImageJPEG)
	assert.Equal(t, "english", summ.reqs[0].Language, "empty language falls back to the default")
}

func TestProcessUploadVisionPath(t *testing.T) {
	jpeg := []byte{0xff, 0xd8}
	norm := &mockNormalizer{res: normalize.Result{JPEG: jpeg}}
	summ := &mockSummarizer{result: types.SummaryResult{Success: true}}
	p := New(testCfg(config.StrategyVision), norm, nil, summ, quietLogger())

	_, err := p.ProcessUpload(context.Background(), []byte("upload"), "image/png", "french")
	require.NoError(t, err)

	require.Equal(t, 1, summ.calls)
	assert.Equal(t, jpeg, summ.reqs[0].ImageJPEG)
	assert.Empty(t, summ.reqs[0].Text)
	assert.Equal(t, "french", summ.reqs[0].Language)
}

func TestProcessUploadPDFTextLayerSkipsExtraction(t *testing.T) {
	norm := &mockNormalizer{res: normalize.Result{Text: "Kündigung Ihres Vertrags zum 31.12.2026"}}
	ext := &mockExtractor{}
	summ := &mockSummarizer{result: types.SummaryResult{Success: true}}
	p := New(testCfg(config.StrategyTesseract), norm, ext, summ, quietLogger())

	_, err := p.ProcessUpload(context.Background(), []byte("%PDF-1.4"), "application/pdf", "english")
	require.NoError(t, err)

	assert.Zero(t, ext.calls, "a usable text layer must bypass image recognition")
	require.Equal(t, 1, summ.calls)
	assert.Equal(t, "Kündigung Ihres Vertrags zum 31.12.2026", summ.reqs[0].Text)
}

func TestProcessUploadNormalizeErrorStopsPipeline(t *testing.T) {
	norm := &mockNormalizer{err: types.E(types.KindUnsupportedMediaType, "nope", nil)}
	ext := &mockExtractor{}
	summ := &mockSummarizer{}
	p := New(testCfg(config.StrategyTesseract), norm, ext, summ, quietLogger())

	_, err := p.ProcessUpload(context.Background(), []byte("upload"), "image/bmp", "english")
	require.Error(t, err)
	assert.Equal(t, types.KindUnsupportedMediaType, types.KindOf(err))
	assert.Zero(t, ext.calls)
	assert.Zero(t, summ.calls)
}

func TestProcessUploadExtractionErrorPropagates(t *testing.T) {
	norm := &mockNormalizer{res: normalize.Result{JPEG: []byte{1}}}
	ext := &mockExtractor{err: types.E(types.KindExtractionFailed, "no text", errors.New("engine"))}
	summ := &mockSummarizer{}
	p := New(testCfg(config.StrategyTesseract), norm, ext, summ, quietLogger())

	_, err := p.ProcessUpload(context.Background(), []byte("upload"), "image/jpeg", "english")
	require.Error(t, err)
	assert.Equal(t, types.KindExtractionFailed, types.KindOf(err))
	assert.Zero(t, summ.calls)
}
