package project

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
)

const (
	// MaxNameLength bounds project names in runes.
	MaxNameLength = 100
	// MaxInputLength bounds a single line of raw user input.
	MaxInputLength = 10000
)

const unsafeNameChars = `<>:"/\|?*`

var slugRe = regexp.MustCompile(`[^a-z0-9-]+`)

// ValidateName checks a raw project name and returns it trimmed.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", perrors.Invalid(perrors.ErrInvalidName, "project name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", perrors.Invalid(perrors.ErrInvalidName, "project name must be %d characters or less", MaxNameLength)
	}
	if i := strings.IndexAny(name, unsafeNameChars); i >= 0 {
		return "", perrors.Invalid(perrors.ErrInvalidName, "project name contains %q; avoid any of %s", name[i], unsafeNameChars)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", perrors.Invalid(perrors.ErrInvalidName, "project name contains control characters")
		}
	}
	if name == "." || name == ".." {
		return "", perrors.Invalid(perrors.ErrInvalidName, "project name %q is reserved", name)
	}
	if GenerateSlug(name) == "" {
		return "", perrors.Invalid(perrors.ErrInvalidName, "project name %q has no letters or digits", name)
	}
	return name, nil
}

// GenerateSlug converts a name into the normalized key used by the store.
func GenerateSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = slugRe.ReplaceAllString(s, "")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if len(s) > 64 {
		s = strings.TrimRight(s[:64], "-")
	}
	return s
}

// NormalizeKey turns a question identifier (or, lacking one, its text) into
// a stable comparable key.
func NormalizeKey(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

var successors = map[Phase]Phase{
	PhaseDiscovery: PhasePlanning,
	PhasePlanning:  PhaseExecution,
	PhaseExecution: PhaseCompleted,
}

// Next returns the defined successor of p, if any.
func Next(p Phase) (Phase, bool) {
	n, ok := successors[p]
	return n, ok
}

// ValidateTransition fails unless to is the successor of from.
func ValidateTransition(from, to Phase) error {
	next, ok := successors[from]
	if !ok {
		return perrors.Invalid(perrors.ErrIllegalTransition, "%s is terminal; cannot move to %s", from, to)
	}
	if to != next {
		return perrors.Invalid(perrors.ErrIllegalTransition, "cannot move from %s to %s; next phase is %s", from, to, next)
	}
	return nil
}

// ValidateSynthesis checks that every required field is present and non-empty.
func ValidateSynthesis(s *Synthesis) error {
	if s == nil {
		return perrors.IncompleteSynthesis([]string{"goals", "motivation", "constraints", "timeline", "successCriteria"})
	}
	var missing []string
	if nonEmpty(s.Goals) == 0 {
		missing = append(missing, "goals")
	}
	if strings.TrimSpace(s.Motivation) == "" {
		missing = append(missing, "motivation")
	}
	if nonEmpty(s.Constraints) == 0 {
		missing = append(missing, "constraints")
	}
	if strings.TrimSpace(s.Timeline) == "" {
		missing = append(missing, "timeline")
	}
	if nonEmpty(s.SuccessCriteria) == 0 {
		missing = append(missing, "successCriteria")
	}
	if len(missing) > 0 {
		return perrors.IncompleteSynthesis(missing)
	}
	return nil
}

// ValidateActionRef fails with UnknownAction unless id is one of valid.
func ValidateActionRef(id string, valid []string) error {
	for _, v := range valid {
		if v == id {
			return nil
		}
	}
	return perrors.UnknownAction(id, valid)
}

// SanitizeInput trims raw input and rejects oversize lines.
func SanitizeInput(input string) (string, error) {
	if len(input) > MaxInputLength {
		return "", perrors.Invalid(perrors.ErrInvalidInput, "input too long (%d chars, maximum %d)", len(input), MaxInputLength)
	}
	return strings.TrimSpace(input), nil
}

func nonEmpty(items []string) int {
	n := 0
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

func compareIDs(a, b string) int {
	na, oka := idSeq(a)
	nb, okb := idSeq(b)
	switch {
	case oka && okb && na != nb:
		return na - nb
	case oka && !okb:
		return -1
	case !oka && okb:
		return 1
	}
	return strings.Compare(a, b)
}

// idSeq extracts N from "action-N".
func idSeq(id string) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(id, ActionIDPrefix+"%d", &n); err != nil {
		return 0, false
	}
	if fmt.Sprintf("%s%d", ActionIDPrefix, n) != id {
		return 0, false
	}
	return n, true
}
