package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign computes the integrity signature the gateway expects:
// hex(sha256(reference + amountInCents + currency + secret)), no separators.
// It is a pure function of its inputs and must be recomputed per request.
func Sign(reference string, amountInCents int64, currency, secret string) string {
	h := sha256.New()
	h.Write([]byte(reference))
	h.Write([]byte(strconv.FormatInt(amountInCents, 10)))
	h.Write([]byte(currency))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
