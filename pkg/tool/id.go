package tool

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTransactionNo returns a time-ordered unique ledger entry number.
func GenerateTransactionNo() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateProviderTxID returns the transaction id handed to the payment
// provider when a top-up order is created. Prefixed and second-resolution
// timestamped so support staff can eyeball the creation time.
func GenerateProviderTxID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")[:12]
	return fmt.Sprintf("PAY%s%s", now.UTC().Format("20060102150405"), suffix)
}
