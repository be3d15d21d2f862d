package broadcast

import "strings"

// OutcomeKind classifies a backend submission result.
type OutcomeKind int

const (
	// OutcomeAccepted means the network received the transaction. Acceptance
	// is not settlement; the engine still waits for the confirmation push.
	OutcomeAccepted OutcomeKind = iota
	OutcomeRejected
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "ACCEPTED"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// resourceExhaustedMarker is the substring ledger nodes include when an
// account has run out of transaction-fee allowance.
const resourceExhaustedMarker = "Please wait to transact"

// Outcome is the result of one backend submission.
type Outcome struct {
	Kind      OutcomeKind
	LedgerRef string // set only when accepted
	Detail    string // set only when rejected
}

// Accepted builds an accepted outcome carrying the ledger reference.
func Accepted(ref string) Outcome {
	return Outcome{Kind: OutcomeAccepted, LedgerRef: ref}
}

// Rejected builds a rejected outcome carrying the failure detail.
func Rejected(detail string) Outcome {
	return Outcome{Kind: OutcomeRejected, Detail: detail}
}

// Cancelled builds the user-declined outcome.
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// ResourceExhausted reports whether the rejection means the account lacks
// transaction capacity and a delegation should be requested.
func (o Outcome) ResourceExhausted() bool {
	return o.Kind == OutcomeRejected && strings.Contains(o.Detail, resourceExhaustedMarker)
}
