// CLAUDE:SUMMARY PDF decoder using pdfcpu: page content-stream text with quality scoring.
// CLAUDE:DEPENDS docpipe/quality.go
package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// decodePDF reads the whole document with pdfcpu and concatenates the text
// shown on each page, one line per page. A PDF without text (scans) decodes
// to empty text; the quality metrics flag it for OCR.
func decodePDF(ctx context.Context, payload []byte) (*Decoded, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(payload), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	chars := 0
	for n := 1; n <= pctx.PageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if text := pageText(pctx, n); text != "" {
			pages = append(pages, text)
			chars += utf8.RuneCountInString(text)
		}
	}
	fullText := strings.Join(pages, "\n")

	var charsPerPage float64
	if pctx.PageCount > 0 {
		charsPerPage = float64(chars) / float64(pctx.PageCount)
	}

	return &Decoded{
		Text: fullText,
		Quality: &ExtractionQuality{
			PageCount:       pctx.PageCount,
			CharsPerPage:    charsPerPage,
			PrintableRatio:  printableRatio(fullText),
			WordlikeRatio:   wordlikeRatio(fullText),
			HasImageStreams: hasImages(pctx),
			VisualRefCount:  visualRefs(fullText),
		},
	}, nil
}

// pageText returns the text shown by one page's content stream. A page whose
// content cannot be read contributes nothing.
func pageText(pc *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pc, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return showText(data)
}

// hasImages reports whether any live object is an image XObject.
func hasImages(pc *model.Context) bool {
	for _, e := range pc.Table {
		if e == nil || e.Free || e.Compressed {
			continue
		}
		if sd, ok := e.Object.(types.StreamDict); ok {
			if st := sd.Subtype(); st != nil && *st == "Image" {
				return true
			}
		}
	}
	return false
}

// showText walks a content stream and returns the strings painted by the
// text-showing operators (Tj, TJ, ' and "). Positioning operators become
// spaces, line moves become newlines; whitespace is collapsed at the end.
// Literal bytes above 0x7F are read as Latin-1.
func showText(data []byte) string {
	var out strings.Builder
	var operands []string
	sep := func(b byte) {
		if out.Len() > 0 {
			out.WriteByte(b)
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '(':
			lit, n := readLiteral(data[i:])
			operands = append(operands, lit)
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '<':
			lit, n := readHex(data[i:])
			operands = append(operands, lit)
			i += n
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case isPDFSpace(c) || c == '[' || c == ']' || c == '>':
			i++
		default:
			start := i
			if c == '/' {
				i++
			}
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelim(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			switch op := string(data[start:i]); op {
			case "Tj", "TJ":
				for _, s := range operands {
					out.WriteString(s)
				}
				operands = operands[:0]
			case "'", "\"":
				sep('\n')
				for _, s := range operands {
					out.WriteString(s)
				}
				operands = operands[:0]
			case "Td", "TD", "Tm":
				sep(' ')
				operands = operands[:0]
			case "T*":
				sep('\n')
				operands = operands[:0]
			default:
				// Numbers and names are operands; other operators consume theirs.
				if !isOperand(op) {
					operands = operands[:0]
				}
			}
		}
	}
	return collapseSpace(out.String())
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

// isOperand reports whether a bare token is a number or a name rather than
// an operator.
func isOperand(tok string) bool {
	if tok[0] == '/' {
		return true
	}
	return strings.Trim(tok, "+-.0123456789") == ""
}

// readLiteral decodes the balanced string literal at the start of b and
// returns it with the number of bytes consumed.
func readLiteral(b []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for ; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '(':
			depth++
			if depth == 1 {
				continue
			}
		case c == ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
		case c == '\\' && i+1 < len(b):
			i++
			c = b[i]
			switch c {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\n':
				continue
			case '\r':
				if i+1 < len(b) && b[i+1] == '\n' {
					i++
				}
				continue
			default:
				if c >= '0' && c <= '7' {
					v := int(c - '0')
					for k := 0; k < 2 && i+1 < len(b) && b[i+1] >= '0' && b[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(b[i]-'0')
					}
					c = byte(v)
				}
			}
		}
		sb.WriteRune(rune(c))
	}
	return sb.String(), i
}

// readHex decodes the <hex> string at the start of b. An odd final digit is
// padded with 0.
func readHex(b []byte) (string, int) {
	var sb strings.Builder
	hi, half := 0, false
	i := 1
	for ; i < len(b) && b[i] != '>'; i++ {
		v, ok := hexVal(b[i])
		if !ok {
			continue
		}
		if half {
			sb.WriteRune(rune(hi<<4 | v))
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		sb.WriteRune(rune(hi << 4))
	}
	if i < len(b) {
		i++
	}
	return sb.String(), i
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// collapseSpace drops non-printable runes and folds whitespace runs to a
// single space.
func collapseSpace(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
