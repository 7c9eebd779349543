// CLAUDE:SUMMARY Command variants produced by the chat command grammar, with a visitor for exhaustive dispatch.
// Package command interprets the short imperative lines users type into a chat
// channel (HELP, LIST, DELETE, MOVE, SUMMARY) into typed, normalized commands.
//
// Parsing is pure: it never touches storage and never fails hard. Anything it
// cannot understand comes back as Unknown with a reason suitable for the user.
//
// Usage:
//
//	cmd := command.Parse("delete /ProjectX/*.pdf CONFIRM")
//	reply := command.Reply(cmd)
package command

// Kind is the wire tag of a command variant.
type Kind string

const (
	KindHelp    Kind = "HELP"
	KindList    Kind = "LIST"
	KindDelete  Kind = "DELETE"
	KindMove    Kind = "MOVE"
	KindSummary Kind = "SUMMARY"
	KindUnknown Kind = "UNKNOWN"
)

// Command is one parsed chat command. The set of implementations is closed.
type Command interface {
	Kind() Kind
	command()
}

// Help asks for the grammar summary.
type Help struct{}

// List lists a folder.
type List struct {
	FolderPath string
}

// Delete removes a file or every file matching a pattern. Confirm is set when
// the CONFIRM token appeared anywhere among the arguments.
type Delete struct {
	TargetPath string
	Confirm    bool
}

// Move moves a file into a folder.
type Move struct {
	SourcePath     string
	DestFolderPath string
}

// Summary asks for a summary of the documents in a folder.
type Summary struct {
	FolderPath string
}

// Unknown is the parse failure variant. It never carries partial results.
type Unknown struct {
	Raw    string
	Reason string
}

func (Help) Kind() Kind    { return KindHelp }
func (List) Kind() Kind    { return KindList }
func (Delete) Kind() Kind  { return KindDelete }
func (Move) Kind() Kind    { return KindMove }
func (Summary) Kind() Kind { return KindSummary }
func (Unknown) Kind() Kind { return KindUnknown }

func (Help) command()    {}
func (List) command()    {}
func (Delete) command()  {}
func (Move) command()    {}
func (Summary) command() {}
func (Unknown) command() {}

// Visitor handles every command variant. A new variant adds a method here, so
// every consumer must handle it before the tree compiles again.
type Visitor[R any] interface {
	Help(Help) R
	List(List) R
	Delete(Delete) R
	Move(Move) R
	Summary(Summary) R
	Unknown(Unknown) R
}

// Visit dispatches c to the matching Visitor method.
func Visit[R any](c Command, v Visitor[R]) R {
	switch c := c.(type) {
	case Help:
		return v.Help(c)
	case List:
		return v.List(c)
	case Delete:
		return v.Delete(c)
	case Move:
		return v.Move(c)
	case Summary:
		return v.Summary(c)
	case Unknown:
		return v.Unknown(c)
	}
	// Unreachable: Command is sealed by its unexported method.
	panic("command: unhandled variant")
}
