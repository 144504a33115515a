// Package keymanager defines the canonical representation of a
// validator credential bundle and the lifecycle store that manages it
// inside the secret store. Secret fields only ever cross the store
// boundary in envelope-encrypted form.
package keymanager

import (
	"time"

	"github.com/pkg/errors"
)

// Status is the lifecycle state of a key record. It is a closed enum;
// unrecognized values are rejected at the deserialization boundary
// rather than silently carried through.
type Status int

const (
	// StatusUnused is assigned at creation; the key has never signed.
	StatusUnused Status = iota
	// StatusActive marks the key as loaded (or loadable) into the
	// remote signer.
	StatusActive
	// StatusRetired is terminal; the key must never sign again.
	StatusRetired
)

func (s Status) String() string {
	switch s {
	case StatusUnused:
		return "unused"
	case StatusActive:
		return "active"
	case StatusRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// ParseStatus converts a wire string into a Status, rejecting anything
// outside the closed set.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "unused":
		return StatusUnused, nil
	case "active":
		return StatusActive, nil
	case "retired":
		return StatusRetired, nil
	default:
		return 0, errors.Errorf("unrecognized key status %q", s)
	}
}

// KeyRecord is one validator's credential bundle. SigningKey,
// WithdrawalKey and Mnemonic are plaintext only in memory; the store
// codec encrypts them before any write.
type KeyRecord struct {
	Pubkey           string
	SigningKey       string
	WithdrawalPubkey string
	WithdrawalKey    string
	Mnemonic         string
	BatchID          string
	CreatedAt        time.Time
	Status           Status
	ClientType       string
	Notes            string

	// StoreVersion is the version the secret store reported on last
	// read. It is never serialized; status transitions use it as the
	// check-and-set token.
	StoreVersion int
}
