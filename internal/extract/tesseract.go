package extract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/clearpost/letter-clarity-service/internal/types"
)

// Tesseract runs the embedded OCR engine. A fresh client is created per
// recognition and closed on every exit path; leaking clients leaks the
// underlying native engine.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

func NewTesseract(languages []string) *Tesseract {
	return &Tesseract{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (t *Tesseract) Recognize(ctx context.Context, jpeg []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", types.E(types.KindUpstreamTimeout, "Text recognition timed out.", err)
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(jpeg); err != nil {
		return "", types.E(types.KindExtractionFailed, "Text recognition failed.", fmt.Errorf("set image: %w", err))
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return "", types.E(types.KindExtractionFailed, "Text recognition failed.", fmt.Errorf("set languages: %w", err))
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", types.E(types.KindExtractionFailed, "Text recognition failed.", err)
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return "", types.E(types.KindExtractionFailed, "No text could be recognized in the image.", nil)
	}
	return cleaned, nil
}
