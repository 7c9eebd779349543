package command

import "strings"

const confirmToken = "CONFIRM"

// Parse reads one chat line. Verbs are case-insensitive; path arguments are
// kept as typed apart from normalization.
func Parse(raw string) Command {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return Unknown{Raw: text, Reason: "empty command"}
	}

	if upper := strings.ToUpper(text); upper == "HELP" || upper == "/HELP" {
		return Help{}
	}

	parts := strings.Split(text, " ")
	verb, args := parts[0], parts[1:]

	switch strings.ToUpper(verb) {
	case "LIST":
		return List{FolderPath: NormalizePath(argAt(args, 0))}

	case "DELETE":
		confirm := false
		var rest []string
		for _, a := range args {
			if strings.EqualFold(a, confirmToken) {
				confirm = true
				continue
			}
			rest = append(rest, a)
		}
		if len(rest) == 0 {
			return Unknown{Raw: text, Reason: "DELETE requires a file path"}
		}
		return Delete{TargetPath: NormalizePath(rest[0]), Confirm: confirm}

	case "MOVE":
		if len(args) < 2 {
			return Unknown{Raw: text, Reason: "MOVE requires source and destination"}
		}
		return Move{SourcePath: NormalizePath(args[0]), DestFolderPath: NormalizePath(args[1])}

	case "SUMMARY":
		return Summary{FolderPath: NormalizePath(argAt(args, 0))}

	default:
		return Unknown{Raw: text, Reason: "unknown command; try HELP"}
	}
}

// NormalizePath makes p absolute and drops trailing slashes, keeping "/" for
// the root. It is purely syntactic: ".." segments and letter case are kept.
func NormalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
