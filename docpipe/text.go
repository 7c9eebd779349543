package docpipe

import (
	"context"
	"strings"
)

// decodeText treats the payload as UTF-8. Invalid sequences become U+FFFD
// rather than failing the request.
func decodeText(_ context.Context, payload []byte) (*Decoded, error) {
	return &Decoded{Text: strings.ToValidUTF8(string(payload), "\uFFFD")}, nil
}
