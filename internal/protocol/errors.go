package protocol

// Drop reasons. Rejected input is never reported back to the sender; the
// reasons only feed server-side counters and logs.
const (
	DropMalformed     = "malformed"
	DropUnrecognized  = "unrecognized"
	DropUnknownActor  = "unknown_actor"
	DropRateLimit     = "rate_limit"
	DropEmptyText     = "empty_text"
	DropUnknownAction = "unknown_action"
	DropUnknownZone   = "unknown_zone"
	DropTooFar        = "too_far"
	DropAlreadyClaim  = "already_claimed"
)

// DropReasons lists every reason in a stable order (used for metrics output).
var DropReasons = []string{
	DropMalformed,
	DropUnrecognized,
	DropUnknownActor,
	DropRateLimit,
	DropEmptyText,
	DropUnknownAction,
	DropUnknownZone,
	DropTooFar,
	DropAlreadyClaim,
}

var knownReasons = func() map[string]int {
	m := make(map[string]int, len(DropReasons))
	for i, r := range DropReasons {
		m[r] = i
	}
	return m
}()

func IsKnownReason(reason string) bool {
	_, ok := knownReasons[reason]
	return ok
}

// ReasonIndex returns the position of reason in DropReasons, or -1.
func ReasonIndex(reason string) int {
	i, ok := knownReasons[reason]
	if !ok {
		return -1
	}
	return i
}
