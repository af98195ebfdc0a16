package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign computes the callback signature: hex HMAC-SHA256 over
// "timestamp|amount|txid|secret" keyed with the shared secret. amount is
// signed as the exact string the provider sent, not a re-serialized number.
func Sign(timestamp, amount, txid, secret string) string {
	payload := fmt.Sprintf("%s|%s|%s|%s", timestamp, amount, txid, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a provider-supplied signature in constant time.
func VerifySignature(timestamp, amount, txid, secret, signature string) bool {
	expected := Sign(timestamp, amount, txid, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
