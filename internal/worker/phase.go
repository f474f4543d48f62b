package worker

// Worker lifecycle phases. Exactly one worker state exists per process;
// its phase only moves along the transitions below, so a warm worker can
// never silently fall back to re-initialization outside a job boundary.
const (
	PhaseUninitialized = "uninitialized"
	PhaseInitializing  = "initializing"
	PhaseReady         = "ready"
	PhaseDegraded      = "degraded"
)

// validTransitions maps each phase to the set of phases it may move to.
// Ready is terminal for success: once warm, the handle is reused across
// jobs without re-acquisition. Degraded re-enters Initializing on the
// next job's readiness check, one retry per job.
var validTransitions = map[string]map[string]bool{
	PhaseUninitialized: {
		PhaseInitializing: true,
	},
	PhaseInitializing: {
		PhaseReady:    true,
		PhaseDegraded: true,
	},
	PhaseDegraded: {
		PhaseInitializing: true,
	},
}

// ValidTransition reports whether moving from one phase to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
