package llm

import "context"

// Part is one element of a model request: either inline binary with a media type, or text.
type Part struct {
	MediaType string
	Data      []byte
	Text      string
}

// Inline wraps document bytes as a request part.
func Inline(mediaType string, data []byte) Part {
	return Part{MediaType: mediaType, Data: data}
}

// Text wraps instruction or context text as a request part.
func Text(s string) Part {
	return Part{Text: s}
}

// IsInline reports whether the part carries binary payload.
func (p Part) IsInline() bool {
	return p.MediaType != "" && len(p.Data) > 0
}

// Gateway is the single boundary to the hosted model. Payload parts come first and the
// instruction last. Failures are *GatewayError.
type Gateway interface {
	Invoke(ctx context.Context, parts []Part) (string, error)
	Model() string
}
