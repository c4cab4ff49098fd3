// Package identity derives the anonymized user id sent to the completion service.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Anonymize returns the uppercase hex SHA-256 of the sender address.
// The completion provider only needs a stable per-user tag, not the phone number.
func Anonymize(sender string) string {
	sum := sha256.Sum256([]byte(sender))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
