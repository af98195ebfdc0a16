package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/pkg/types"
)

func TestNextExpiry(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		current time.Time
		days    int
		want    time.Time
	}{
		{
			name:    "future expiry extends from itself",
			current: now.AddDate(0, 2, 0),
			days:    30,
			want:    now.AddDate(0, 2, 0).AddDate(0, 0, 30),
		},
		{
			name:    "past expiry restarts from now",
			current: now.AddDate(0, -3, 0),
			days:    30,
			want:    now.AddDate(0, 0, 30),
		},
		{
			name:    "expiry exactly now extends from now",
			current: now,
			days:    7,
			want:    now.AddDate(0, 0, 7),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextExpiry(tc.current, now, tc.days)
			assert.True(t, got.Equal(tc.want), "got %s, want %s", got, tc.want)
		})
	}
}

func TestValidateCard(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		status  types.CardStatus
		expires time.Time
		wantErr error
	}{
		{"active and unexpired", types.CardStatusActive, now.AddDate(0, 1, 0), nil},
		{"frozen", types.CardStatusFrozen, now.AddDate(0, 1, 0), ErrCardFrozen},
		{"expired", types.CardStatusActive, now.AddDate(0, 0, -1), ErrCardExpired},
		{"frozen wins over expired", types.CardStatusFrozen, now.AddDate(0, 0, -1), ErrCardFrozen},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card := &models.MemberCard{Status: tc.status, ExpiredAt: tc.expires}
			err := validateCard(card, now)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}
