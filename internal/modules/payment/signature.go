// README: Webhook signature verification (authenticity gate, pure).
package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Signature recomputes the gateway's payload signature: SHA-512 over the
// fixed concatenation orderRef + statusCode + grossAmount + serverKey.
func Signature(orderRef, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderRef + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares in constant time; a mismatch means the payload
// was tampered with or did not come from the gateway.
func VerifySignature(n Notification, serverKey string) bool {
	want := Signature(n.OrderRef, n.StatusCode, n.GrossAmount, serverKey)
	return hmac.Equal([]byte(want), []byte(n.SignatureKey))
}
