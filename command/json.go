package command

import (
	"encoding/json"
	"fmt"
)

// wire is the JSON form shared by every variant, tagged by "type".
type wire struct {
	Type           Kind    `json:"type"`
	FolderPath     string  `json:"folderPath,omitempty"`
	TargetPath     string  `json:"targetPath,omitempty"`
	Confirm        *bool   `json:"confirm,omitempty"`
	SourcePath     string  `json:"sourcePath,omitempty"`
	DestFolderPath string  `json:"destFolderPath,omitempty"`
	Raw            *string `json:"raw,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

type wireVisitor struct{}

func (wireVisitor) Help(Help) wire { return wire{Type: KindHelp} }
func (wireVisitor) List(c List) wire {
	return wire{Type: KindList, FolderPath: c.FolderPath}
}
func (wireVisitor) Delete(c Delete) wire {
	confirm := c.Confirm
	return wire{Type: KindDelete, TargetPath: c.TargetPath, Confirm: &confirm}
}
func (wireVisitor) Move(c Move) wire {
	return wire{Type: KindMove, SourcePath: c.SourcePath, DestFolderPath: c.DestFolderPath}
}
func (wireVisitor) Summary(c Summary) wire {
	return wire{Type: KindSummary, FolderPath: c.FolderPath}
}
func (wireVisitor) Unknown(c Unknown) wire {
	raw := c.Raw
	return wire{Type: KindUnknown, Raw: &raw, Reason: c.Reason}
}

// Encode returns the JSON form of c, e.g. {"type":"LIST","folderPath":"/x"}.
func Encode(c Command) ([]byte, error) {
	return json.Marshal(Visit[wire](c, wireVisitor{}))
}

func (c Help) MarshalJSON() ([]byte, error)    { return Encode(c) }
func (c List) MarshalJSON() ([]byte, error)    { return Encode(c) }
func (c Delete) MarshalJSON() ([]byte, error)  { return Encode(c) }
func (c Move) MarshalJSON() ([]byte, error)    { return Encode(c) }
func (c Summary) MarshalJSON() ([]byte, error) { return Encode(c) }
func (c Unknown) MarshalJSON() ([]byte, error) { return Encode(c) }

// Decode reads the JSON form produced by Encode. Paths are normalized again so
// a decoded command upholds the same invariants as a parsed one.
func Decode(data []byte) (Command, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	switch w.Type {
	case KindHelp:
		return Help{}, nil
	case KindList:
		return List{FolderPath: NormalizePath(w.FolderPath)}, nil
	case KindDelete:
		if w.TargetPath == "" {
			return nil, fmt.Errorf("decode command: DELETE without targetPath")
		}
		return Delete{TargetPath: NormalizePath(w.TargetPath), Confirm: w.Confirm != nil && *w.Confirm}, nil
	case KindMove:
		if w.SourcePath == "" || w.DestFolderPath == "" {
			return nil, fmt.Errorf("decode command: MOVE without sourcePath or destFolderPath")
		}
		return Move{SourcePath: NormalizePath(w.SourcePath), DestFolderPath: NormalizePath(w.DestFolderPath)}, nil
	case KindSummary:
		return Summary{FolderPath: NormalizePath(w.FolderPath)}, nil
	case KindUnknown:
		u := Unknown{Reason: w.Reason}
		if w.Raw != nil {
			u.Raw = *w.Raw
		}
		return u, nil
	default:
		return nil, fmt.Errorf("decode command: unknown type %q", w.Type)
	}
}
