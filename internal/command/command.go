// Package command parses raw user input into phase-specific commands and
// suggests the closest known command for unrecognized input.
package command

import (
	"strings"
)

// Type identifies a parsed command.
type Type int

const (
	CmdUnknown Type = iota
	CmdAnswer       // free-text discovery answer
	CmdSkip
	CmdBack
	CmdQuit
	CmdEnough
	CmdHelp
	CmdApprove
	CmdFeedback
	CmdRead
	CmdStatus
	CmdCheckIn
	CmdComplete
	CmdBlock
	CmdStart
	CmdAdjust
	CmdDone
	CmdExit
)

// Command is a parsed line of user input.
type Command struct {
	Type Type
	Name string // the verb as typed, lowercased
	ID   string // action id for complete/start/block
	Text string // answer, feedback text, block reason or adjust note
	Raw  string
}

// DiscoveryCommands are the navigation verbs accepted during discovery.
var DiscoveryCommands = []string{"skip", "back", "quit", "enough", "help"}

// PlanningCommands are the verbs accepted during planning.
var PlanningCommands = []string{"approve", "feedback", "read", "quit", "help"}

// ExecutionCommands are the verbs accepted during execution.
var ExecutionCommands = []string{"status", "checkin", "complete", "block", "start", "adjust", "help", "done", "exit"}

// ParseDiscovery interprets a discovery line. Anything that is not exactly a
// navigation verb is an answer.
func ParseDiscovery(input string) Command {
	text := strings.TrimSpace(input)
	cmd := Command{Raw: input, Name: strings.ToLower(text)}
	switch cmd.Name {
	case "skip":
		cmd.Type = CmdSkip
	case "back":
		cmd.Type = CmdBack
	case "quit":
		cmd.Type = CmdQuit
	case "enough":
		cmd.Type = CmdEnough
	case "help":
		cmd.Type = CmdHelp
	default:
		cmd.Type = CmdAnswer
		cmd.Name = ""
		cmd.Text = text
	}
	return cmd
}

// ParsePlanning interprets a planning line.
func ParsePlanning(input string) Command {
	verb, rest := splitVerb(input)
	cmd := Command{Raw: input, Name: verb}
	switch verb {
	case "approve":
		cmd.Type = CmdApprove
	case "feedback":
		cmd.Type = CmdFeedback
		cmd.Text = rest
	case "read":
		cmd.Type = CmdRead
	case "quit":
		cmd.Type = CmdQuit
	case "help":
		cmd.Type = CmdHelp
	default:
		cmd.Type = CmdUnknown
	}
	return cmd
}

// ParseExecution interprets an execution line.
func ParseExecution(input string) Command {
	verb, rest := splitVerb(input)
	cmd := Command{Raw: input, Name: verb}
	switch verb {
	case "status":
		cmd.Type = CmdStatus
	case "checkin", "check-in":
		cmd.Type = CmdCheckIn
	case "complete":
		cmd.Type = CmdComplete
		cmd.ID, _ = splitWord(rest)
	case "start":
		cmd.Type = CmdStart
		cmd.ID, _ = splitWord(rest)
	case "block":
		cmd.Type = CmdBlock
		id, reason := splitWord(rest)
		cmd.ID = id
		cmd.Text = reason
	case "adjust":
		cmd.Type = CmdAdjust
		cmd.Text = rest
	case "help":
		cmd.Type = CmdHelp
	case "done":
		cmd.Type = CmdDone
	case "exit", "quit":
		cmd.Type = CmdExit
	default:
		cmd.Type = CmdUnknown
	}
	return cmd
}

// splitVerb returns the lowercased first word and the untouched remainder.
func splitVerb(input string) (string, string) {
	word, rest := splitWord(input)
	return strings.ToLower(word), rest
}

func splitWord(input string) (string, string) {
	text := strings.TrimSpace(input)
	i := strings.IndexAny(text, " \t")
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i+1:])
}
