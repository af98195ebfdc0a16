package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10", "10"},
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"0.1", "0.1"},
		{"19.999", "20"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, Normalize(dec(tt.in)).Equal(dec(tt.want)),
				"Normalize(%s) = %s, want %s", tt.in, Normalize(dec(tt.in)), tt.want)
		})
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("12.345")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("12.35")))

	_, err = Parse("12,34")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestParseReportedKeepsPrecision(t *testing.T) {
	got, err := ParseReported("50.005")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("50.005")))

	_, err = ParseReported("fifty")
	assert.Error(t, err)
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "equal", a: "50.00", b: "50.00", want: true},
		{name: "sub-cent drift", a: "50.00", b: "50.009", want: true},
		{name: "exactly one cent", a: "50.00", b: "50.01", want: false},
		{name: "tampered amount", a: "50.00", b: "500.00", want: false},
		{name: "symmetric", a: "50.009", b: "50.00", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinTolerance(dec(tt.a), dec(tt.b)))
		})
	}
}

func TestMin(t *testing.T) {
	assert.True(t, Min(dec("3"), dec("5")).Equal(dec("3")))
	assert.True(t, Min(dec("5"), dec("3")).Equal(dec("3")))
	assert.True(t, Min(dec("3"), dec("3")).Equal(dec("3")))
}
