package docpipe

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hazyhaar/docrelay/horosafe"
)

// maxArchiveEntry caps the decompressed size of the XML part read from an
// Office archive, so a small zip cannot expand without bound.
const maxArchiveEntry int64 = 256 << 20

// maxXMLDepth rejects documents nested deeper than any real Office file.
const maxXMLDepth = 256

// decodeDocx reads word/document.xml from a .docx archive and returns the
// raw text of its paragraphs, separated by blank lines. Tabs and line breaks
// inside runs are kept. Paragraphs nested in a text box stay inside their
// enclosing paragraph, one per line.
func decodeDocx(ctx context.Context, payload []byte) (*Decoded, error) {
	rc, err := openArchiveEntry(payload, "word/document.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var paragraphs []string
	var current strings.Builder
	inText := false
	depth := 0
	paraDepth := 0 // text boxes nest <w:p> inside <w:p>

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("document.xml: nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p":
				if paraDepth == 0 {
					current.Reset()
				}
				paraDepth++
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if paraDepth == 0 {
					break
				}
				paraDepth--
				if paraDepth > 0 {
					current.WriteByte('\n')
					break
				}
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		}
	}

	return &Decoded{Text: strings.Join(paragraphs, "\n\n")}, nil
}

// openArchiveEntry opens one member of a zip payload with its decompressed
// size bounded by maxArchiveEntry.
func openArchiveEntry(payload []byte, name string) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		return horosafe.LimitedReadCloser(rc, maxArchiveEntry), nil
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
