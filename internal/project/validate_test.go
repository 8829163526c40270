package project

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "Kitchen Renovation", "Kitchen Renovation", false},
		{"trimmed", "  garden  ", "garden", false},
		{"empty", "", "", true},
		{"whitespace", "   ", "", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), "", true},
		{"max length", strings.Repeat("a", MaxNameLength), strings.Repeat("a", MaxNameLength), false},
		{"slash", "home/office", "", true},
		{"backslash", `a\b`, "", true},
		{"colon", "plan: v2", "", true},
		{"question mark", "why?", "", true},
		{"dot dot", "..", "", true},
		{"control", "bad\x00name", "", true},
		{"punctuation only", "!!!", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, perrors.ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "kitchen-renovation", GenerateSlug("Kitchen Renovation"))
	assert.Equal(t, "learn-go-2026", GenerateSlug("  Learn   Go 2026 "))
	assert.Equal(t, "my-big-project", GenerateSlug("my_big__project"))
	assert.Equal(t, "", GenerateSlug("!!!"))
	assert.LessOrEqual(t, len(GenerateSlug(strings.Repeat("ab ", 60))), 64)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "timeline", NormalizeKey("Timeline"))
	assert.Equal(t, "what-is-your-budget", NormalizeKey("What is your budget?"))
	assert.Equal(t, "budget", NormalizeKey("  budget!! "))
	assert.Equal(t, "", NormalizeKey("??"))
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(PhaseDiscovery, PhasePlanning))
	assert.NoError(t, ValidateTransition(PhasePlanning, PhaseExecution))
	assert.NoError(t, ValidateTransition(PhaseExecution, PhaseCompleted))

	illegal := []struct{ from, to Phase }{
		{PhaseDiscovery, PhaseExecution},
		{PhaseDiscovery, PhaseCompleted},
		{PhasePlanning, PhaseDiscovery},
		{PhaseExecution, PhasePlanning},
		{PhaseCompleted, PhaseDiscovery},
		{PhaseCompleted, PhaseCompleted},
	}
	for _, tt := range illegal {
		err := ValidateTransition(tt.from, tt.to)
		assert.ErrorIs(t, err, perrors.ErrIllegalTransition, "%s -> %s", tt.from, tt.to)
	}
}

func completeSynthesis() *Synthesis {
	return &Synthesis{
		Goals:           []string{"new cabinets"},
		Motivation:      "cooking more at home",
		Constraints:     []string{"$15k budget"},
		Timeline:        "by spring",
		SuccessCriteria: []string{"family cooks dinner there weekly"},
	}
}

func TestValidateSynthesis(t *testing.T) {
	assert.NoError(t, ValidateSynthesis(completeSynthesis()))

	s := completeSynthesis()
	s.Goals = []string{"  "}
	s.Timeline = ""
	err := ValidateSynthesis(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrIncompleteSynthesis)

	var ve *perrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"goals", "timeline"}, ve.Missing)

	assert.ErrorIs(t, ValidateSynthesis(nil), perrors.ErrIncompleteSynthesis)
}

func TestValidateActionRef(t *testing.T) {
	valid := []string{"action-1", "action-2"}
	assert.NoError(t, ValidateActionRef("action-2", valid))

	err := ValidateActionRef("action-7", valid)
	var ve *perrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, perrors.ErrUnknownAction)
	assert.Equal(t, valid, ve.ValidIDs)
}

func TestSanitizeInput(t *testing.T) {
	got, err := SanitizeInput("  hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = SanitizeInput(strings.Repeat("x", MaxInputLength+1))
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
}

func TestSortedIDs_NumericOrder(t *testing.T) {
	actions := map[string]*ActionItem{
		"action-10": {ID: "action-10"},
		"action-2":  {ID: "action-2"},
		"action-1":  {ID: "action-1"},
		"custom":    {ID: "custom"},
	}
	assert.Equal(t, []string{"action-1", "action-2", "action-10", "custom"}, SortedIDs(actions))
}
