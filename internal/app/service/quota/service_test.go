package quota

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestSplitAmount(t *testing.T) {
	cases := []struct {
		name        string
		freeBalance string
		amount      string
		wantFree    string
		wantBalance string
	}{
		{"quota covers everything", "5.00", "3.00", "3.00", "0"},
		{"quota covers exactly", "3.00", "3.00", "3.00", "0"},
		{"quota covers part", "1.50", "3.00", "1.50", "1.50"},
		{"quota empty", "0", "3.00", "0", "3.00"},
		{"quota negative is treated as empty", "-1.00", "3.00", "0", "3.00"},
		{"fractional cents", "0.01", "0.03", "0.01", "0.02"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitAmount(dec(tc.freeBalance), dec(tc.amount))
			assert.True(t, got.FreeUsed.Equal(dec(tc.wantFree)),
				"free used = %s, want %s", got.FreeUsed, tc.wantFree)
			assert.True(t, got.BalanceUsed.Equal(dec(tc.wantBalance)),
				"balance used = %s, want %s", got.BalanceUsed, tc.wantBalance)
		})
	}
}

func TestSplitAmountSumsToRequested(t *testing.T) {
	amounts := []string{"0.01", "1.00", "9.99", "100.00"}
	balances := []string{"0", "0.50", "5.00", "1000.00"}

	for _, a := range amounts {
		for _, b := range balances {
			got := splitAmount(dec(b), dec(a))
			assert.True(t, got.FreeUsed.Add(got.BalanceUsed).Equal(dec(a)),
				"split of %s against %s does not sum back", a, b)
			assert.False(t, got.FreeUsed.IsNegative())
			assert.False(t, got.BalanceUsed.IsNegative())
		}
	}
}
