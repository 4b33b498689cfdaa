package extract

import "context"

// Extractor recognizes text in a normalized JPEG. Implementations must
// release any engine resources before returning, on every path.
type Extractor interface {
	Recognize(ctx context.Context, jpeg []byte) (string, error)
}
