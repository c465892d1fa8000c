package enums

import "fmt"

// SettlementStatus is the joint buyer/seller settlement state tracked on a
// payment cross-reference. U2A is the buyer's payment into the app wallet,
// A2U the compensating payout to the seller.
type SettlementStatus string

const (
	SettlementStatusPending      SettlementStatus = "pending"
	SettlementStatusU2ACompleted SettlementStatus = "u2a_completed"
	SettlementStatusU2AFailed    SettlementStatus = "u2a_failed"
	SettlementStatusA2UCompleted SettlementStatus = "a2u_completed"
	SettlementStatusA2UFailed    SettlementStatus = "a2u_failed"
	SettlementStatusCompleted    SettlementStatus = "completed"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementStatusPending,
	SettlementStatusU2ACompleted,
	SettlementStatusU2AFailed,
	SettlementStatusA2UCompleted,
	SettlementStatusA2UFailed,
	SettlementStatusCompleted,
}

// String implements fmt.Stringer.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementStatus.
func (s SettlementStatus) IsValid() bool {
	for _, candidate := range validSettlementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status may never regress.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusCompleted
}

// ParseSettlementStatus converts raw input into a SettlementStatus.
func ParseSettlementStatus(value string) (SettlementStatus, error) {
	for _, candidate := range validSettlementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement status %q", value)
}
