package checkout

// State is the single source of truth for a checkout session's progress.
type State string

const (
	StateIdle            State = "idle"
	StateAddressSelected State = "address_selected"
	StateMethodSelected  State = "method_selected"
	StateGating          State = "gating"
	StateReadyToSubmit   State = "ready_to_submit"
	StateSubmitting      State = "submitting"
	StateCommitted       State = "committed"
	StateFailed          State = "failed"
)

// stateTransitions lists every move a session may make. Anything not in
// the table is rejected rather than inferred from flag combinations.
var stateTransitions = map[State][]State{
	StateIdle:            {StateAddressSelected},
	StateAddressSelected: {StateAddressSelected, StateMethodSelected},
	StateMethodSelected:  {StateAddressSelected, StateMethodSelected, StateGating, StateReadyToSubmit},
	StateGating:          {StateAddressSelected, StateMethodSelected, StateReadyToSubmit, StateFailed},
	StateReadyToSubmit:   {StateAddressSelected, StateMethodSelected, StateSubmitting},
	StateSubmitting:      {StateCommitted, StateFailed},
	StateFailed:          {StateAddressSelected, StateMethodSelected, StateGating, StateReadyToSubmit, StateSubmitting},
}

func canTransition(from, to State) bool {
	for _, candidate := range stateTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session has finished for good.
func (s State) IsTerminal() bool {
	return s == StateCommitted
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}
