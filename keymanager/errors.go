package keymanager

import "github.com/pkg/errors"

var (
	// ErrRecordNotFound is returned when no record exists for an
	// identifier.
	ErrRecordNotFound = errors.New("keymanager: record not found")
	// ErrCorruptRecord is returned when a record's payload exists but
	// cannot be decrypted or parsed.
	ErrCorruptRecord = errors.New("keymanager: corrupt record")
	// ErrInvalidTransition is returned for a status change the
	// lifecycle state machine forbids.
	ErrInvalidTransition = errors.New("keymanager: invalid status transition")
)
