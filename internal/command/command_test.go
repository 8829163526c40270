package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDiscovery(t *testing.T) {
	tests := []struct {
		input string
		want  Type
		text  string
	}{
		{"skip", CmdSkip, ""},
		{"  SKIP ", CmdSkip, ""},
		{"back", CmdBack, ""},
		{"quit", CmdQuit, ""},
		{"enough", CmdEnough, ""},
		{"help", CmdHelp, ""},
		{"I want to redo the kitchen", CmdAnswer, "I want to redo the kitchen"},
		{"skip the tiles, keep the floor", CmdAnswer, "skip the tiles, keep the floor"},
		{"", CmdAnswer, ""},
	}
	for _, tt := range tests {
		cmd := ParseDiscovery(tt.input)
		assert.Equal(t, tt.want, cmd.Type, tt.input)
		assert.Equal(t, tt.text, cmd.Text, tt.input)
	}
}

func TestParsePlanning(t *testing.T) {
	cmd := ParsePlanning("feedback   I need a shorter timeline ")
	assert.Equal(t, CmdFeedback, cmd.Type)
	assert.Equal(t, "I need a shorter timeline", cmd.Text)

	assert.Equal(t, CmdFeedback, ParsePlanning("feedback").Type)
	assert.Equal(t, "", ParsePlanning("feedback").Text)
	assert.Equal(t, CmdApprove, ParsePlanning("Approve").Type)
	assert.Equal(t, CmdRead, ParsePlanning("read").Type)
	assert.Equal(t, CmdQuit, ParsePlanning("quit").Type)
	assert.Equal(t, CmdUnknown, ParsePlanning("approv").Type)
}

func TestParseExecution(t *testing.T) {
	cmd := ParseExecution("block action-2 waiting on the plumber")
	assert.Equal(t, CmdBlock, cmd.Type)
	assert.Equal(t, "action-2", cmd.ID)
	assert.Equal(t, "waiting on the plumber", cmd.Text)

	cmd = ParseExecution("block action-2")
	assert.Equal(t, CmdBlock, cmd.Type)
	assert.Equal(t, "", cmd.Text)

	cmd = ParseExecution("complete action-1")
	assert.Equal(t, CmdComplete, cmd.Type)
	assert.Equal(t, "action-1", cmd.ID)

	cmd = ParseExecution("start")
	assert.Equal(t, CmdStart, cmd.Type)
	assert.Equal(t, "", cmd.ID)

	cmd = ParseExecution("adjust push the deadline a week")
	assert.Equal(t, CmdAdjust, cmd.Type)
	assert.Equal(t, "push the deadline a week", cmd.Text)

	assert.Equal(t, CmdCheckIn, ParseExecution("checkin").Type)
	assert.Equal(t, CmdStatus, ParseExecution("STATUS").Type)
	assert.Equal(t, CmdDone, ParseExecution("done").Type)
	assert.Equal(t, CmdExit, ParseExecution("exit").Type)
	assert.Equal(t, CmdUnknown, ParseExecution("chekin").Type)
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"chekin", "checkin"},
		{"chckin", "checkin"},
		{"stat", "status"},
		{"stats", "status"},
		{"complet", "complete"},
		{"comp", "complete"},
		{"blok action-1 x", "block"},
		{"ext", "exit"},
		{"d", "done"},
		{"xyzzy", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Suggest(tt.input, ExecutionCommands), tt.input)
	}
}

func TestSuggest_AmbiguousPrefixFallsBackToDistance(t *testing.T) {
	// "s" prefixes both status and start.
	assert.Equal(t, "status", Suggest("s", ExecutionCommands))
	assert.Equal(t, "approve", Suggest("aprove", PlanningCommands))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("done", "done"))
	assert.Equal(t, 1, levenshtein("don", "done"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 4, levenshtein("", "exit"))
}
