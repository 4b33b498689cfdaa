package summarize

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/clearpost/letter-clarity-service/internal/extract"
	"github.com/clearpost/letter-clarity-service/internal/types"
)

const toolName = "letter_summary"

// ChatModel is the slice of llms.Model this package needs. *openai.LLM
// satisfies it; tests substitute a recorder.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Request carries either already-recognized text or a normalized JPEG. When
// ImageJPEG is set the model performs the extraction itself and must echo
// the recognized text in its structured response.
type Request struct {
	Text      string
	ImageJPEG []byte
	Language  string
}

type Summarizer struct {
	llm     ChatModel
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a Summarizer. limiter paces outbound calls to protect the
// upstream quota and may be nil.
func New(llm ChatModel, limiter *rate.Limiter, timeout time.Duration) *Summarizer {
	return &Summarizer{llm: llm, limiter: limiter, timeout: timeout}
}

// payload mirrors the forced tool schema. Any deviation from it is a
// contract violation, not a best-effort extraction.
type payload struct {
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
	OcrText string   `json:"ocrText"`
}

func (s *Summarizer) Summarize(ctx context.Context, req Request) (types.SummaryResult, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return types.SummaryResult{}, types.E(types.KindUpstreamTimeout, "The request timed out.", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.llm.GenerateContent(ctx, s.messages(req),
		llms.WithTools(tools(req.Language)),
		llms.WithToolChoice(llms.ToolChoice{
			Type:     "function",
			Function: &llms.FunctionReference{Name: toolName},
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.SummaryResult{}, types.E(types.KindUpstreamTimeout, "The language model did not respond in time.", err)
		}
		return types.SummaryResult{}, types.E(types.KindInvalidModelResponse, "The language model request failed.", err)
	}

	p, err := parsePayload(resp)
	if err != nil {
		return types.SummaryResult{}, err
	}

	result := types.SummaryResult{
		Success: true,
		Summary: p.Summary,
		Actions: p.Actions,
	}

	// Caller-known text is authoritative; the model echo is used only when
	// the model itself performed the extraction.
	if req.Text != "" {
		result.OcrText = req.Text
		result.TextSource = types.TextSourceCaller
		return result, nil
	}

	echoed := extract.CleanText(p.OcrText)
	if echoed == "" {
		return types.SummaryResult{}, types.E(types.KindExtractionFailed, "No text could be recognized in the image.", nil)
	}
	result.OcrText = echoed
	result.TextSource = types.TextSourceModel
	return result, nil
}

func (s *Summarizer) messages(req Request) []llms.MessageContent {
	system := fmt.Sprintf(
		"You are a translation assistant. Summarize the user's letter and list the important actions in simple %s. Also return the recognized text.",
		req.Language)

	var userPart llms.ContentPart
	if len(req.ImageJPEG) > 0 {
		userPart = llms.ImageURLPart("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.ImageJPEG))
	} else {
		userPart = llms.TextPart(req.Text)
	}

	return []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{userPart}},
	}
}

func tools(language string) []llms.Tool {
	return []llms.Tool{{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name: toolName,
			Description: fmt.Sprintf(
				"Provides a %s summary in simple language of the input text or image along with a list of important actions and the recognized text.",
				language),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{
						"type":        "string",
						"description": fmt.Sprintf("Summary of the text in %s in simple language", language),
					},
					"actions": map[string]any{
						"type":        "array",
						"description": "List of important actions based on the content for the user. Make sure to include all actions that are mentioned in the text.",
						"items": map[string]any{
							"type":        "string",
							"description": "An important action that needs to be taken by the user.",
						},
					},
					"ocrText": map[string]any{
						"type":        "string",
						"description": "The full text extracted from the letter",
					},
				},
				"required":             []string{"summary", "actions", "ocrText"},
				"additionalProperties": false,
			},
		},
	}}
}

// parsePayload enforces the structured-output contract: the response must
// carry exactly one call of the forced function, and its arguments must
// decode as the declared schema with no unknown fields.
func parsePayload(resp *llms.ContentResponse) (payload, error) {
	var zero payload
	if resp == nil || len(resp.Choices) == 0 {
		return zero, types.E(types.KindInvalidModelResponse, "The language model returned an empty response.", nil)
	}

	var args string
	for _, tc := range resp.Choices[0].ToolCalls {
		if tc.FunctionCall != nil && tc.FunctionCall.Name == toolName {
			args = tc.FunctionCall.Arguments
			break
		}
	}
	if args == "" {
		return zero, types.E(types.KindInvalidModelResponse,
			"The language model did not return the required structured response.", nil)
	}

	dec := json.NewDecoder(strings.NewReader(args))
	dec.DisallowUnknownFields()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return zero, types.E(types.KindInvalidModelResponse, "The structured response could not be parsed.", err)
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return zero, types.E(types.KindInvalidModelResponse, "The structured response contained trailing data.", nil)
	}

	if strings.TrimSpace(p.Summary) == "" {
		return zero, types.E(types.KindInvalidModelResponse, "The structured response is missing a summary.", nil)
	}
	if p.Actions == nil {
		return zero, types.E(types.KindInvalidModelResponse, "The structured response is missing the action list.", nil)
	}
	return p, nil
}
