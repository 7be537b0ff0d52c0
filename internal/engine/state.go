package engine

// State is the three-level risk classification used at requirement, domain,
// and entity level.
type State string

const (
	StateGreen State = "GREEN"
	StateAmber State = "AMBER"
	StateRed   State = "RED"
)

// Severity orders states for worst-of aggregation: RED > AMBER > GREEN.
func Severity(s State) int {
	switch s {
	case StateRed:
		return 2
	case StateAmber:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of two states.
func Worse(a, b State) State {
	if Severity(b) > Severity(a) {
		return b
	}
	return a
}

// criticalThreshold is the criticality score at and above which a rule is
// treated as critical for priority and alert severity.
const criticalThreshold = 8

// priorityFor derives the display priority from state and criticality.
func priorityFor(s State, criticality int) string {
	critical := criticality >= criticalThreshold
	switch {
	case s == StateRed && critical:
		return "critical"
	case s == StateRed || (s == StateAmber && critical):
		return "high"
	case s == StateAmber:
		return "medium"
	default:
		return "low"
	}
}
