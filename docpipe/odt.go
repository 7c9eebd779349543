// CLAUDE:SUMMARY Decodes .odt (OpenDocument Text) payloads by parsing content.xml from the ZIP archive.
package docpipe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxSpaceRun clamps a single <text:s text:c="n"/>.
const maxSpaceRun = 1024

// maxODTText caps the text a content.xml may expand to.
const maxODTText = 64 << 20

// decodeODT reads content.xml from an .odt archive. Headings and paragraphs
// become blocks separated by blank lines; <text:s text:c="n"/> expands to n
// spaces, clamped to maxSpaceRun. Output past maxODTText fails the decode.
func decodeODT(ctx context.Context, payload []byte) (*Decoded, error) {
	rc, err := openArchiveEntry(payload, "content.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var blocks []string
	var current strings.Builder
	depth := 0 // nesting of <text:p>/<text:h>
	nesting := 0
	written := 0
	grow := func(n int) error {
		written += n
		if written > maxODTText {
			return fmt.Errorf("content.xml: text exceeds %d bytes", maxODTText)
		}
		return nil
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse content.xml: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch t := tok.(type) {
		case xml.StartElement:
			nesting++
			if nesting > maxXMLDepth {
				return nil, fmt.Errorf("content.xml: nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p", "h":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "s":
				n := 1
				for _, attr := range t.Attr {
					if attr.Name.Local == "c" {
						if v, err := strconv.Atoi(attr.Value); err == nil && v > 0 {
							n = min(v, maxSpaceRun)
						}
					}
				}
				if err := grow(n); err != nil {
					return nil, err
				}
				current.WriteString(strings.Repeat(" ", n))
			case "tab":
				current.WriteByte('\t')
			case "line-break":
				current.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				if err := grow(len(t)); err != nil {
					return nil, err
				}
				current.Write(t)
			}
		case xml.EndElement:
			nesting--
			if (t.Name.Local == "p" || t.Name.Local == "h") && depth > 0 {
				depth--
				if depth == 0 {
					if text := strings.TrimSpace(current.String()); text != "" {
						blocks = append(blocks, text)
					}
				}
			}
		}
	}

	return &Decoded{Text: strings.Join(blocks, "\n\n")}, nil
}
