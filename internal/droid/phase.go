package droid

import "strings"

// phaseDef associates a display label and percent estimate with the
// keywords that indicate it. Definitions are ordered from earliest to
// latest; a job only ever moves forward through them.
type phaseDef struct {
	name     string
	percent  int
	keywords []string
}

var phaseDefs = []phaseDef{
	{"starting", 5, []string{"starting", "initializing", "session start"}},
	{"planning", 12, []string{"planning", "plan:", "approach", "breaking down"}},
	{"researching", 25, []string{"researching", "reading", "searching", "exploring", "looking at"}},
	{"building", 40, []string{"building", "implementing", "creating", "adding"}},
	{"writing", 60, []string{"writing", "updating", "editing", "modifying"}},
	{"testing", 75, []string{"testing", "running tests", "test run"}},
	{"reviewing", 88, []string{"reviewing", "verifying", "checking", "double-checking"}},
	{"completing", 95, []string{"completing", "finishing", "wrapping up", "finalizing", "all done"}},
}

// phaseTracker infers a coarse phase from streamed text. The phase
// label and percent are monotonic per job: text matching an earlier
// phase than the current one changes nothing.
type phaseTracker struct {
	index   int
	percent int
}

func newPhaseTracker() *phaseTracker {
	return &phaseTracker{index: -1}
}

// Observe classifies text and reports whether the phase advanced.
// It returns the new label and percent only when changed is true.
func (t *phaseTracker) Observe(text string) (name string, percent int, changed bool) {
	lowered := strings.ToLower(text)

	matched := -1
	for i := len(phaseDefs) - 1; i >= 0; i-- {
		for _, keyword := range phaseDefs[i].keywords {
			if strings.Contains(lowered, keyword) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			break
		}
	}

	if matched <= t.index {
		return "", 0, false
	}

	t.index = matched
	if phaseDefs[matched].percent > t.percent {
		t.percent = phaseDefs[matched].percent
	}
	return phaseDefs[matched].name, t.percent, true
}
