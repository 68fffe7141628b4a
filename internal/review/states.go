package review

import "github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"

// transitions is the explicit state table; anything not listed is
// illegal. COMMITTED and REJECTED are terminal for status changes
// (COMMITTED batches remain deletable, which is not a transition).
var transitions = map[constants.BatchStatus][]constants.BatchStatus{
	constants.BatchPendingReview: {constants.BatchReviewed, constants.BatchCommitted, constants.BatchRejected},
	constants.BatchReviewed:      {constants.BatchCommitted, constants.BatchRejected},
	constants.BatchCommitted:     {},
	constants.BatchRejected:      {},
}

func canTransition(from, to constants.BatchStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// editable reports whether reviewer mutations (patch field) are still
// allowed in a state.
func editable(s constants.BatchStatus) bool {
	return s == constants.BatchPendingReview || s == constants.BatchReviewed
}
