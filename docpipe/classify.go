package docpipe

import "strings"

// Rule maps declared media types to a Format. A rule matches when the
// lower-cased type contains any Contains entry, starts with any Prefixes
// entry, or is empty and Empty is set.
type Rule struct {
	Format   Format   `json:"format" yaml:"format"`
	Contains []string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Prefixes []string `json:"prefixes,omitempty" yaml:"prefixes,omitempty"`
	Empty    bool     `json:"empty,omitempty" yaml:"empty,omitempty"`
}

// DefaultRules is the stock table. Order matters: a type mentioning both
// "pdf" and "wordprocessingml" goes to the PDF decoder.
func DefaultRules() []Rule {
	return []Rule{
		{Format: FormatPDF, Contains: []string{"pdf"}},
		{Format: FormatOffice, Contains: []string{"wordprocessingml", "msword", "docx"}},
		{Format: FormatText, Contains: []string{"text/plain"}, Prefixes: []string{"text/"}, Empty: true},
	}
}

// Match reports whether the lower-cased media type mt satisfies r.
func (r Rule) Match(mt string) bool {
	if mt == "" && r.Empty {
		return true
	}
	for _, s := range r.Contains {
		if s != "" && strings.Contains(mt, strings.ToLower(s)) {
			return true
		}
	}
	for _, s := range r.Prefixes {
		if s != "" && strings.HasPrefix(mt, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Classify picks the Format for a declared media type using the first
// matching rule. Unmatched types yield an *Error of KindUnsupportedMediaType
// carrying the type as declared.
//
// Classification trusts the declared type; it never inspects content.
func Classify(rules []Rule, mediaType string) (Format, error) {
	mt := strings.ToLower(mediaType)
	for _, r := range rules {
		if r.Match(mt) {
			return r.Format, nil
		}
	}
	return "", &Error{Kind: KindUnsupportedMediaType, MediaType: mediaType}
}
