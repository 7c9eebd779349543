package docpipe

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		mediaType string
		want      Format
	}{
		{"application/pdf", FormatPDF},
		{"APPLICATION/PDF", FormatPDF},
		{"application/x-pdf", FormatPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatOffice},
		{"application/msword", FormatOffice},
		{"application/docx", FormatOffice},
		{"text/plain", FormatText},
		{"text/plain; charset=utf-8", FormatText},
		{"text/markdown", FormatText},
		{"text/csv", FormatText},
		{"", FormatText},
		// pdf is checked before the Office rule.
		{"application/pdf+wordprocessingml", FormatPDF},
	}
	for _, tt := range tests {
		got, err := Classify(DefaultRules(), tt.mediaType)
		if err != nil {
			t.Errorf("Classify(%q): %v", tt.mediaType, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.mediaType, got, tt.want)
		}
	}
}

func TestClassify_Unsupported(t *testing.T) {
	for _, mt := range []string{"image/png", "application/json", "application/zip", " "} {
		_, err := Classify(DefaultRules(), mt)
		if !errors.Is(err, ErrUnsupportedMediaType) {
			t.Errorf("Classify(%q) err = %v, want ErrUnsupportedMediaType", mt, err)
			continue
		}
		var de *Error
		if errors.As(err, &de) && de.MediaType != mt {
			t.Errorf("MediaType = %q, want %q", de.MediaType, mt)
		}
	}
}

func TestClassify_CustomRulesFirstMatchWins(t *testing.T) {
	rules := append([]Rule{{Format: FormatHTML, Contains: []string{"text/html"}}}, DefaultRules()...)
	got, err := Classify(rules, "text/html; charset=utf-8")
	if err != nil || got != FormatHTML {
		t.Fatalf("got %q, %v; want html", got, err)
	}
	// Without the extra rule the text/ prefix catches it.
	got, _ = Classify(DefaultRules(), "text/html")
	if got != FormatText {
		t.Errorf("default table: got %q, want text", got)
	}
}

func TestRule_MatchIgnoresEmptyEntries(t *testing.T) {
	r := Rule{Format: FormatText, Contains: []string{""}, Prefixes: []string{""}}
	if r.Match("anything") {
		t.Error("empty entries must not match everything")
	}
	if r.Match("") {
		t.Error("empty type matched without Empty set")
	}
}
