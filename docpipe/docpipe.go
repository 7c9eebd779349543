// CLAUDE:SUMMARY Extraction engine: size and presence guards, media-type classification, bounded decoder dispatch, sanitization.
// Package docpipe converts uploaded documents to plain text.
//
// A payload arrives with a declared media type. The pipeline rejects it if it
// is larger than the configured ceiling or empty, classifies the declared type
// against an ordered rule table, runs the matching decoder under a timeout and
// returns the text with NUL characters removed and outer whitespace trimmed.
//
// Built-in decoders:
//   - pdf:    page content streams via pdfcpu
//   - office: Word .docx (archive/zip → word/document.xml)
//   - text:   UTF-8 passthrough
//   - odt:    OpenDocument Text (archive/zip → content.xml), opt-in
//   - html:   sanitized HTML rendered as Markdown, opt-in
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	res, err := pipe.Extract(ctx, payload, "application/pdf")
//	switch {
//	case errors.Is(err, docpipe.ErrPayloadTooLarge):
//	    ...
//	}
package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hazyhaar/docrelay/kit"
)

// Pipeline is the extraction engine. It holds no per-call state and is safe
// for concurrent use.
type Pipeline struct {
	cfg      Config
	logger   *slog.Logger
	decoders map[Format]Decoder
	tuning   atomic.Pointer[tuning]
}

// tuning is the part of Config that Reload may swap while requests run.
type tuning struct {
	rules   []Rule
	timeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDecoder registers or replaces the decoder for a format.
func WithDecoder(f Format, d Decoder) Option {
	return func(p *Pipeline) { p.decoders[f] = d }
}

// New creates a Pipeline with the given configuration.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.defaults()
	p := &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		decoders: map[Format]Decoder{
			FormatPDF:    decodePDF,
			FormatOffice: decodeDocx,
			FormatText:   decodeText,
			FormatODT:    decodeODT,
			FormatHTML:   newHTMLDecoder().decode,
		},
	}
	p.tuning.Store(&tuning{rules: cfg.Rules, timeout: cfg.DecodeTimeout})
	for _, o := range opts {
		o(p)
	}
	return p
}

// Reload replaces the classification table and decode timeout. Calls already
// past classification keep the values they started with. The payload ceiling
// is fixed for the life of the Pipeline.
func (p *Pipeline) Reload(rules []Rule, decodeTimeout time.Duration) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if decodeTimeout == 0 {
		decodeTimeout = DefaultDecodeTimeout
	}
	p.tuning.Store(&tuning{rules: rules, timeout: decodeTimeout})
	p.logger.Info("pipeline reloaded", "rules", len(rules), "decode_timeout", decodeTimeout)
}

// MaxPayloadSize returns the configured payload ceiling in bytes.
func (p *Pipeline) MaxPayloadSize() int64 { return p.cfg.MaxPayloadSize }

// Classify returns the Format the pipeline would use for mediaType.
func (p *Pipeline) Classify(mediaType string) (Format, error) {
	return Classify(p.tuning.Load().rules, mediaType)
}

// Formats lists the formats reachable through the classification table.
func (p *Pipeline) Formats() []string {
	seen := make(map[Format]bool)
	var out []string
	for _, r := range p.tuning.Load().rules {
		if seen[r.Format] {
			continue
		}
		seen[r.Format] = true
		out = append(out, string(r.Format))
	}
	sort.Strings(out)
	return out
}

// Extract decodes payload according to its declared media type and returns
// sanitized text. Failures are *Error values; no partial text is returned.
func (p *Pipeline) Extract(ctx context.Context, payload []byte, mediaType string) (*Result, error) {
	if size := int64(len(payload)); size > p.cfg.MaxPayloadSize {
		return nil, &Error{Kind: KindPayloadTooLarge, MediaType: mediaType, Size: size, Limit: p.cfg.MaxPayloadSize}
	}
	if len(payload) == 0 {
		return nil, &Error{Kind: KindMissingPayload, MediaType: mediaType}
	}

	t := p.tuning.Load()
	format, err := Classify(t.rules, mediaType)
	if err != nil {
		return nil, err
	}
	dec, ok := p.decoders[format]
	if !ok {
		return nil, &Error{Kind: KindInternal, MediaType: mediaType, Err: fmt.Errorf("no decoder for format %q", format)}
	}

	p.logger.Debug("extracting payload", "format", format, "media_type", mediaType, "bytes", len(payload),
		"request_id", kit.GetRequestID(ctx), "transport", kit.GetTransport(ctx))

	out, err := p.decode(ctx, format, dec, payload, t.timeout)
	if err != nil {
		p.logger.Warn("extraction failed", "format", format, "media_type", mediaType, "error", err,
			"request_id", kit.GetRequestID(ctx))
		return nil, err
	}

	if out.Quality != nil {
		p.logger.Debug("pdf quality",
			"pages", out.Quality.PageCount,
			"chars_per_page", out.Quality.CharsPerPage,
			"needs_ocr", out.Quality.NeedsOCR(),
		)
	}

	text := Sanitize(out.Text)
	return &Result{
		Text:    text,
		Length:  utf8.RuneCountInString(text),
		Format:  format,
		Quality: out.Quality,
	}, nil
}

// decode runs dec in its own goroutine so the call can be abandoned when ctx
// is cancelled or timeout elapses. An abandoned decoder finishes in the
// background; its result is discarded.
func (p *Pipeline) decode(ctx context.Context, format Format, dec Decoder, payload []byte, timeout time.Duration) (*Decoded, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		out *Decoded
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &Error{Kind: KindInternal, Err: fmt.Errorf("%s decoder panic: %v", format, r)}}
			}
		}()
		out, err := dec(ctx, payload)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if _, typed := o.err.(*Error); typed {
				return nil, o.err
			}
			return nil, &Error{Kind: KindDecodeFailed, Err: fmt.Errorf("%s: %w", format, o.err)}
		}
		if o.out == nil {
			return &Decoded{}, nil
		}
		return o.out, nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindDecodeFailed, Err: fmt.Errorf("%s decoder abandoned: %w", format, ctx.Err())}
	}
}

// Sanitize removes NUL characters and trims surrounding whitespace, including
// a leading byte order mark.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}
