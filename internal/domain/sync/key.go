package sync

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SubscriptionKey derives the deterministic lookup column for webhook
// routing. Keyed HMAC rather than a bare hash so the provider subscription
// id cannot be brute-forced from the stored column, yet the value is stable
// and indexable.
func SubscriptionKey(lookupKey []byte, subscriptionID string) string {
	mac := hmac.New(sha256.New, lookupKey)
	mac.Write([]byte(subscriptionID))
	return hex.EncodeToString(mac.Sum(nil))
}
