package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TransactionStatus
		to   TransactionStatus
		want bool
	}{
		{name: "pending to completed", from: TransactionStatusPending, to: TransactionStatusCompleted, want: true},
		{name: "pending to failed", from: TransactionStatusPending, to: TransactionStatusFailed, want: true},
		{name: "completed is terminal", from: TransactionStatusCompleted, to: TransactionStatusFailed, want: false},
		{name: "failed is terminal", from: TransactionStatusFailed, to: TransactionStatusCompleted, want: false},
		{name: "no self transition", from: TransactionStatusPending, to: TransactionStatusPending, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
