package types

// TextSource records where the recognized text in a SummaryResult came from.
// Caller-known text (a resubmission, a local OCR pass, or a PDF text layer)
// is authoritative and returned verbatim; the model echo is used only when
// the LLM itself performed the extraction.
type TextSource string

const (
	TextSourceCaller TextSource = "caller"
	TextSourceModel  TextSource = "model"
)

// ResubmitRequest re-translates already-recognized text into a new target
// language without re-running extraction.
type ResubmitRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// SummaryResult is the wire contract returned to the browser on success.
type SummaryResult struct {
	Success    bool       `json:"success"`
	Summary    string     `json:"summary"`
	Actions    []string   `json:"actions"`
	OcrText    string     `json:"ocrText"`
	TextSource TextSource `json:"textSource"`
}
