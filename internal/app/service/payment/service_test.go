package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/pkg/types"
)

const testSecret = "payment_secret"

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func pendingOrder(amount string) *models.Transaction {
	txid := "PAY20240615120000abcdef123456"
	return &models.Transaction{
		ID:             1,
		UserID:         42,
		Type:           types.TransactionTypeTopup,
		Amount:         dec(amount),
		Status:         types.TransactionStatusPending,
		ThirdPartyTxID: &txid,
	}
}

func signedCallback(order *models.Transaction, amount, status string) *CallbackRequest {
	ts := time.Date(2024, 6, 15, 12, 5, 0, 0, time.UTC).Format(time.RFC3339)
	req := &CallbackRequest{
		TxID:      *order.ThirdPartyTxID,
		Amount:    amount,
		Status:    status,
		Timestamp: ts,
	}
	req.Signature = Sign(req.Timestamp, req.Amount, req.TxID, testSecret)
	return req
}

func TestSignDeterministic(t *testing.T) {
	a := Sign("1718452800", "50.00", "PAY123", testSecret)
	b := Sign("1718452800", "50.00", "PAY123", testSecret)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// any field change must change the signature
	assert.NotEqual(t, a, Sign("1718452801", "50.00", "PAY123", testSecret))
	assert.NotEqual(t, a, Sign("1718452800", "50.01", "PAY123", testSecret))
	assert.NotEqual(t, a, Sign("1718452800", "50.00", "PAY124", testSecret))
	assert.NotEqual(t, a, Sign("1718452800", "50.00", "PAY123", "other_secret"))
}

func TestVerifySignature(t *testing.T) {
	sig := Sign("1718452800", "50.00", "PAY123", testSecret)
	assert.True(t, VerifySignature("1718452800", "50.00", "PAY123", testSecret, sig))
	assert.False(t, VerifySignature("1718452800", "50.00", "PAY123", testSecret, sig+"00"))
	assert.False(t, VerifySignature("1718452800", "50.00", "PAY123", "wrong", sig))
	assert.False(t, VerifySignature("1718452800", "50.00", "PAY123", testSecret, ""))
}

func TestValidateCallbackAcceptsExactAmount(t *testing.T) {
	order := pendingOrder("50.00")
	req := signedCallback(order, "50.00", "completed")

	target, err := validateCallback(order, req, testSecret)
	assert.NoError(t, err)
	assert.Equal(t, types.TransactionStatusCompleted, target)
}

func TestValidateCallbackAmountTolerance(t *testing.T) {
	cases := []struct {
		name     string
		reported string
		ok       bool
	}{
		{"exact", "50.00", true},
		{"sub-cent over", "50.005", true},
		{"sub-cent under", "49.995", true},
		{"one cent off is rejected", "50.01", false},
		{"way off", "49.00", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := pendingOrder("50.00")
			req := signedCallback(order, tc.reported, "completed")
			_, err := validateCallback(order, req, testSecret)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrAmountMismatch)
			}
		})
	}
}

func TestValidateCallbackRejections(t *testing.T) {
	t.Run("already processed", func(t *testing.T) {
		order := pendingOrder("50.00")
		order.Status = types.TransactionStatusCompleted
		req := signedCallback(order, "50.00", "completed")
		_, err := validateCallback(order, req, testSecret)
		assert.ErrorIs(t, err, ErrOrderProcessed)
	})

	t.Run("bad signature", func(t *testing.T) {
		order := pendingOrder("50.00")
		req := signedCallback(order, "50.00", "completed")
		req.Signature = "deadbeef"
		_, err := validateCallback(order, req, testSecret)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered amount fails signature before tolerance", func(t *testing.T) {
		order := pendingOrder("50.00")
		req := signedCallback(order, "50.00", "completed")
		req.Amount = "500.00"
		_, err := validateCallback(order, req, testSecret)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("unparseable amount", func(t *testing.T) {
		order := pendingOrder("50.00")
		req := signedCallback(order, "fifty", "completed")
		_, err := validateCallback(order, req, testSecret)
		assert.ErrorIs(t, err, ErrAmountMismatch)
	})

	t.Run("unsupported status", func(t *testing.T) {
		order := pendingOrder("50.00")
		req := signedCallback(order, "50.00", "pending")
		_, err := validateCallback(order, req, testSecret)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("failed status settles as failed", func(t *testing.T) {
		order := pendingOrder("50.00")
		req := signedCallback(order, "50.00", "failed")
		target, err := validateCallback(order, req, testSecret)
		assert.NoError(t, err)
		assert.Equal(t, types.TransactionStatusFailed, target)
	})
}
