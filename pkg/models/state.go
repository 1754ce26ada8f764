package models

// FileState is the lifecycle state of a stored object.
type FileState string

const (
	// StateInitiated is the state of a freshly reserved object for which a
	// presigned PUT URL has been issued but no finalization has happened.
	StateInitiated FileState = "INITIATED"
	// StateScanning means complete() succeeded and a scan job is pending.
	StateScanning FileState = "SCANNING"
	// StateActive means the object passed all checks and is downloadable.
	StateActive FileState = "ACTIVE"
	// StateQuarantined means the bytes were received but failed policy or
	// structural checks. Kept in the blob store for forensic inspection.
	StateQuarantined FileState = "QUARANTINED"
	// StateRejected means content verification (checksum) failed.
	StateRejected FileState = "REJECTED"
)

// allowedTransitions is the closed transition set of the upload state
// machine. ACTIVE, QUARANTINED and REJECTED are terminal.
var allowedTransitions = map[FileState][]FileState{
	StateInitiated:   {StateScanning, StateRejected, StateQuarantined},
	StateScanning:    {StateActive, StateQuarantined},
	StateActive:      {},
	StateQuarantined: {},
	StateRejected:    {},
}

// CanTransition reports whether moving from current to target is legal.
func (s FileState) CanTransition(target FileState) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s FileState) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// IsValid checks if the state is a member of the state machine.
func (s FileState) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}
