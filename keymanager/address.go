package keymanager

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RecordPrefix is the store namespace holding key records.
const RecordPrefix = "validator-keys"

const legacyNameLen = 16

// CanonicalPath addresses a record by its own public key. Lookup is
// O(1) and the path is self-describing. All writes use this scheme.
func CanonicalPath(pubkey string) string {
	return fmt.Sprintf("%s/%s", RecordPrefix, pubkey)
}

// LegacyName is the historical address: the first 16 hex characters of
// sha256 over the public key. It is not reversible; resolving it to a
// public key requires rehashing every known identifier.
func LegacyName(pubkey string) string {
	sum := sha256.Sum256([]byte(pubkey))
	return hex.EncodeToString(sum[:])[:legacyNameLen]
}

// LegacyPath addresses a record under the legacy scheme. Only the
// migration tool reads these; nothing writes them anymore.
func LegacyPath(pubkey string) string {
	return fmt.Sprintf("%s/%s", RecordPrefix, LegacyName(pubkey))
}

// IsLegacyName reports whether a listed child name is legacy-shaped:
// exactly 16 characters of the lowercase hex alphabet. Canonical names
// are 0x-prefixed public keys, so the shapes cannot collide.
func IsLegacyName(name string) bool {
	if len(name) != legacyNameLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
