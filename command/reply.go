package command

import "fmt"

// HelpText is sent back for HELP.
const HelpText = `Commands:
HELP
LIST <folder>
DELETE <path> [CONFIRM]
MOVE <path> <folder>
SUMMARY <folder>

Patterns such as /ProjectX/*.pdf need CONFIRM to delete. Paths cannot contain spaces.`

// Reply returns the acknowledgement an orchestrator sends to the user before
// it touches storage.
func Reply(c Command) string {
	return Visit[string](c, replyVisitor{})
}

type replyVisitor struct{}

func (replyVisitor) Help(Help) string { return HelpText }

func (replyVisitor) List(c List) string {
	return fmt.Sprintf("Listing %s", c.FolderPath)
}

func (replyVisitor) Delete(c Delete) string {
	if c.NeedsConfirmation(0) {
		return fmt.Sprintf("%s matches several files. Send DELETE %s CONFIRM to proceed.", c.TargetPath, c.TargetPath)
	}
	return fmt.Sprintf("Deleting %s", c.TargetPath)
}

func (replyVisitor) Move(c Move) string {
	return fmt.Sprintf("Moving %s to %s", c.SourcePath, c.DestFolderPath)
}

func (replyVisitor) Summary(c Summary) string {
	return fmt.Sprintf("Summarizing %s", c.FolderPath)
}

func (replyVisitor) Unknown(c Unknown) string {
	return c.Reason
}
