package types

// CardStatus is the lifecycle state of a member card.
// frozen cards reject every balance mutation; flipping back to active is an
// admin operation outside the ledger core.
type CardStatus string

const (
	CardStatusActive CardStatus = "active"
	CardStatusFrozen CardStatus = "frozen"
)
