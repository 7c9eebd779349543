// CLAUDE:SUMMARY Defines Format, Decoded and Result types for the docpipe extraction service.
package docpipe

import "context"

// Format identifies which decoder handles a payload.
type Format string

const (
	FormatPDF    Format = "pdf"
	FormatOffice Format = "office" // Word .docx
	FormatText   Format = "text"
	FormatODT    Format = "odt"  // no default rule; enable via Config.Rules
	FormatHTML   Format = "html" // no default rule; enable via Config.Rules
)

// Decoded is a decoder's raw output, before sanitization.
type Decoded struct {
	Text    string
	Quality *ExtractionQuality // PDF only
}

// Decoder turns the bytes of one format into text. Decoders must not retain
// payload after returning.
type Decoder func(ctx context.Context, payload []byte) (*Decoded, error)

// Result is the sanitized outcome of Extract. Length is the number of
// characters in Text after sanitization.
type Result struct {
	Text    string             `json:"text"`
	Length  int                `json:"length"`
	Format  Format             `json:"format"`
	Quality *ExtractionQuality `json:"quality,omitempty"`
}
