package command

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// globMeta holds the characters that turn a delete target into a pattern.
const globMeta = "*?[{"

// IsPattern reports whether the delete target can match more than one file.
func (d Delete) IsPattern() bool {
	return strings.ContainsAny(d.TargetPath, globMeta)
}

// Match returns the entries of paths selected by the delete target. A plain
// target matches only itself. Paths are normalized before matching; "*" does
// not cross "/" while "**" does.
func (d Delete) Match(paths []string) ([]string, error) {
	if !d.IsPattern() {
		for _, p := range paths {
			if NormalizePath(p) == d.TargetPath {
				return []string{d.TargetPath}, nil
			}
		}
		return nil, nil
	}

	g, err := glob.Compile(d.TargetPath, '/')
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", d.TargetPath, err)
	}
	var out []string
	for _, p := range paths {
		if n := NormalizePath(p); g.Match(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// NeedsConfirmation reports whether a delete resolving to matches files must
// be held back until the user repeats it with CONFIRM.
func (d Delete) NeedsConfirmation(matches int) bool {
	if d.Confirm {
		return false
	}
	return d.IsPattern() || matches > 1
}
