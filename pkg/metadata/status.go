package metadata

import "fmt"

// Status is the lifecycle state of an asset. Terminal states have no
// outgoing transitions; the non-terminal ones are mutually reachable.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusInactive    Status = "INACTIVE"
	StatusMaintenance Status = "MAINTENANCE"
	StatusRetired     Status = "RETIRED"
	StatusDisposed    Status = "DISPOSED"
	StatusDestroyed   Status = "DESTROYED"
	StatusStolen      Status = "STOLEN"
	StatusLost        Status = "LOST"
)

func NewStatus(value string) (Status, error) {
	status := Status(value)
	if !status.isValid() {
		return "", fmt.Errorf("invalid status: %s", value)
	}
	return status, nil
}

func (s Status) isValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance,
		StatusRetired, StatusDisposed, StatusDestroyed, StatusStolen, StatusLost:
		return true
	default:
		return false
	}
}

// TerminalStatuses lists the out-of-service states, mostly for query
// filters.
func TerminalStatuses() []Status {
	return []Status{StatusRetired, StatusDisposed, StatusDestroyed, StatusStolen, StatusLost}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusRetired, StatusDisposed, StatusDestroyed, StatusStolen, StatusLost:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the transition is legal. Terminal states
// never transition; non-terminal states reach every other state.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	return target.isValid() && target != s
}
