package elaboration

import "fmt"

// Phase is one step of an elaboration run
type Phase string

const (
	PhaseLoadPrevious    Phase = "load_previous"
	PhaseDeltaDetect     Phase = "delta_detect"
	PhaseDeltaReview     Phase = "delta_review"
	PhaseEscapeHatch     Phase = "escape_hatch"
	PhaseTargetedReview  Phase = "targeted_review"
	PhaseAggregate       Phase = "aggregate"
	PhaseUpdateReadiness Phase = "update_readiness"
	PhaseComplete        Phase = "complete"
	PhaseError           Phase = "error"
)

// phaseOrder is the only path through a run. Phases with nothing to do
// still run and advance.
var phaseOrder = []Phase{
	PhaseLoadPrevious,
	PhaseDeltaDetect,
	PhaseDeltaReview,
	PhaseEscapeHatch,
	PhaseTargetedReview,
	PhaseAggregate,
	PhaseUpdateReadiness,
	PhaseComplete,
}

// Phases returns the phases of a successful run in execution order
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// IsValid checks if the phase value is valid
func (p Phase) IsValid() bool {
	if p == PhaseError {
		return true
	}
	for _, q := range phaseOrder {
		if p == q {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no node runs in this phase
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// ParsePhase parses a phase name
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid phase: %s", s)
	}
	return p, nil
}

// Next is the transition function of the run. Once the state has entered
// the error phase it never leaves it; otherwise the run advances strictly
// along phaseOrder and stays put on complete.
func Next(p Phase, s State) Phase {
	if s.Phase == PhaseError || p == PhaseError {
		return PhaseError
	}
	for i, q := range phaseOrder {
		if q == p {
			if i+1 < len(phaseOrder) {
				return phaseOrder[i+1]
			}
			return PhaseComplete
		}
	}
	return PhaseError
}
