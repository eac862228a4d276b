package order

// State is a step of a single create, update or delete orchestration.
//
// Success runs Start → Validating → Pricing → Persisting → Committed. A
// failure before anything is written ends in Failed; a failure once the
// transaction is open ends in RolledBack. Update skips Pricing when the
// product set is unchanged and Delete never prices.
type State string

const (
	StateStart      State = "start"
	StateValidating State = "validating"
	StatePricing    State = "pricing"
	StatePersisting State = "persisting"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
	StateRolledBack State = "rolled_back"
)

// Terminal reports whether s ends an orchestration.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateFailed, StateRolledBack:
		return true
	default:
		return false
	}
}

// Observer is notified once per orchestration with its terminal state.
type Observer func(op string, final State)

// outcome maps the last state reached and the returned error to the
// terminal state.
func outcome(reached State, err error) State {
	switch {
	case err == nil:
		return StateCommitted
	case reached == StatePersisting:
		return StateRolledBack
	default:
		return StateFailed
	}
}
