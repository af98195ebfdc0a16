package types

// TransactionType classifies ledger entries.
type TransactionType string

const (
	// TransactionTypeTopup is a balance increase confirmed by the payment provider.
	TransactionTypeTopup TransactionType = "topup"
	// TransactionTypeDeduction is a paid-balance deduction for an app use.
	TransactionTypeDeduction TransactionType = "deduction"
	// TransactionTypeFreeDeduction is the daily-free-quota portion of an app use.
	TransactionTypeFreeDeduction TransactionType = "free_deduction"
)

// TransactionStatus is the state of a ledger entry. Once a row leaves
// pending it is terminal and never mutated again.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// orderTransitions lists the legal top-up order transitions. Deductions are
// written directly in a terminal state and never appear here.
var orderTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {TransactionStatusCompleted, TransactionStatusFailed},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to TransactionStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
