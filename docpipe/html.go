// CLAUDE:SUMMARY Opt-in HTML decoder: prunes hidden and script content, sanitizes with bluemonday, renders Markdown.
package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)font-size\s*:\s*0(?:[^.\d]|$)`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(?:[^.\d]|$)`),
	regexp.MustCompile(`(?i)(?:left|top|text-indent)\s*:\s*-\d{4,}`),
}

type htmlDecoder struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

func newHTMLDecoder() *htmlDecoder {
	return &htmlDecoder{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// decode drops content a reader would not see (scripts, styles, hidden
// elements), sanitizes what is left and converts it to Markdown.
func (d *htmlDecoder) decode(_ context.Context, payload []byte) (*Decoded, error) {
	doc, err := html.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	pruneInvisible(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	md, err := d.conv.ConvertString(string(d.policy.SanitizeBytes(buf.Bytes())))
	if err != nil {
		return nil, fmt.Errorf("html to markdown: %w", err)
	}
	return &Decoded{Text: md}, nil
}

// pruneInvisible removes, in place, every subtree a browser would not show.
func pruneInvisible(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if isInvisible(c) {
			n.RemoveChild(c)
		} else {
			pruneInvisible(c)
		}
		c = next
	}
}

func isInvisible(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "style":
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(a.Val) {
					return true
				}
			}
		}
	}
	return false
}
