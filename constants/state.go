package constants

// DocState is the canonical lifecycle state for a queued document.
type DocState string

// Stable values (logged and persisted as these exact strings).
const (
	DocPending    DocState = "PENDING"    // enqueued, extraction not yet triggered
	DocProcessing DocState = "PROCESSING" // extraction triggered (at most once without explicit retry)
	DocDone       DocState = "DONE"       // terminal; entered only by the commit protocol
)

// CanTransition reports whether a lifecycle transition is legal.
// The only legal edges are PENDING -> PROCESSING and PROCESSING -> DONE;
// DONE is terminal and no edge may be revisited.
func CanTransition(from, to DocState) bool {
	switch {
	case from == DocPending && to == DocProcessing:
		return true
	case from == DocProcessing && to == DocDone:
		return true
	default:
		return false
	}
}
