package keymanager

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/crypto/envelope"
	"github.com/stakeops/keysmith/vault"
)

var log = logrus.WithField("prefix", "keymanager")

// Store reads and writes key records through the secret store, passing
// every secret field through the encryption envelope. All mutation is
// read-full-record, modify-in-memory, write-full-record; writes carry
// the version read as a check-and-set token, so a concurrent writer
// surfaces vault.ErrCheckAndSet instead of being silently overwritten.
type Store struct {
	kv  vault.KV
	env *envelope.Envelope
}

// NewStore constructs a Store. Both collaborators are passed in
// explicitly; the package holds no global client state.
func NewStore(kv vault.KV, env *envelope.Envelope) *Store {
	return &Store{kv: kv, env: env}
}

func (s *Store) encode(rec *KeyRecord) (map[string]interface{}, error) {
	signingKey, err := s.env.Encrypt([]byte(rec.SigningKey))
	if err != nil {
		return nil, errors.Wrap(err, "could not encrypt signing key")
	}
	withdrawalKey, err := s.env.Encrypt([]byte(rec.WithdrawalKey))
	if err != nil {
		return nil, errors.Wrap(err, "could not encrypt withdrawal key")
	}
	mnemonic, err := s.env.Encrypt([]byte(rec.Mnemonic))
	if err != nil {
		return nil, errors.Wrap(err, "could not encrypt mnemonic")
	}
	return map[string]interface{}{
		"pubkey":             rec.Pubkey,
		"privkey":            signingKey,
		"withdrawal_pubkey":  rec.WithdrawalPubkey,
		"withdrawal_privkey": withdrawalKey,
		"mnemonic":           mnemonic,
		"batch_id":           rec.BatchID,
		"created_at":         rec.CreatedAt.UTC().Format(time.RFC3339),
		"status":             rec.Status.String(),
		"client_type":        rec.ClientType,
		"notes":              rec.Notes,
	}, nil
}

func (s *Store) decode(data map[string]interface{}, version int) (*KeyRecord, error) {
	str := func(field string) string {
		v, _ := data[field].(string)
		return v
	}
	status, err := ParseStatus(str("status"))
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptRecord, "%v", err)
	}
	createdAt, err := time.Parse(time.RFC3339, str("created_at"))
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptRecord, "unparseable created_at %q", str("created_at"))
	}
	signingKey, err := s.env.Decrypt(str("privkey"))
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptRecord, "signing key: %v", err)
	}
	withdrawalKey, err := s.env.Decrypt(str("withdrawal_privkey"))
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptRecord, "withdrawal key: %v", err)
	}
	mnemonic, err := s.env.Decrypt(str("mnemonic"))
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptRecord, "mnemonic: %v", err)
	}
	return &KeyRecord{
		Pubkey:           str("pubkey"),
		SigningKey:       string(signingKey),
		WithdrawalPubkey: str("withdrawal_pubkey"),
		WithdrawalKey:    string(withdrawalKey),
		Mnemonic:         string(mnemonic),
		BatchID:          str("batch_id"),
		CreatedAt:        createdAt,
		Status:           status,
		ClientType:       str("client_type"),
		Notes:            str("notes"),
		StoreVersion:     version,
	}, nil
}

// Put writes rec under canonical addressing and updates rec.StoreVersion
// with the version the store assigned.
func (s *Store) Put(ctx context.Context, rec *KeyRecord) error {
	if rec.Pubkey == "" {
		return errors.New("record has no public key")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := s.encode(rec)
	if err != nil {
		return err
	}
	version, err := s.kv.Put(ctx, CanonicalPath(rec.Pubkey), data)
	if err != nil {
		return errors.Wrapf(err, "could not store record for %s", abbrev(rec.Pubkey))
	}
	rec.StoreVersion = version
	return nil
}

// Get retrieves and decrypts the record for pubkey.
func (s *Store) Get(ctx context.Context, pubkey string) (*KeyRecord, error) {
	data, version, err := s.kv.Get(ctx, CanonicalPath(pubkey))
	if errors.Is(err, vault.ErrNotFound) {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s", abbrev(pubkey))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read record for %s", abbrev(pubkey))
	}
	return s.decode(data, version)
}

// Destroy irreversibly removes the record for pubkey.
func (s *Store) Destroy(ctx context.Context, pubkey string) error {
	return s.kv.Destroy(ctx, CanonicalPath(pubkey))
}

// Filter narrows List results. Nil/zero fields match everything.
// Filtering happens client-side after decryption; the store has no
// server-side query support.
type Filter struct {
	Status        *Status
	BatchID       string
	ClientType    string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (f Filter) matches(rec *KeyRecord) bool {
	if f.Status != nil && rec.Status != *f.Status {
		return false
	}
	if f.BatchID != "" && rec.BatchID != f.BatchID {
		return false
	}
	if f.ClientType != "" && rec.ClientType != f.ClientType {
		return false
	}
	if f.CreatedAfter != nil && rec.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && rec.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// List returns every canonical record matching the filter, in the
// store's listing order. Records that fail to decrypt or parse are
// logged and skipped; partial results are returned rather than
// aborting the listing. Legacy-shaped names are migration candidates,
// never canonical entries, and are skipped here.
func (s *Store) List(ctx context.Context, filter Filter) ([]*KeyRecord, error) {
	names, err := s.kv.List(ctx, RecordPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "could not list record namespace")
	}
	var records []*KeyRecord
	for _, name := range names {
		if IsLegacyName(name) {
			continue
		}
		rec, err := s.Get(ctx, name)
		if err != nil {
			log.WithError(err).WithField("record", abbrev(name)).Warn("Skipping unreadable record")
			continue
		}
		if filter.matches(rec) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Unused returns up to count records with status unused, optionally
// scoped to a batch, in listing order. A non-positive count yields an
// empty result. No reservation or locking is performed: concurrent
// callers can receive overlapping sets.
func (s *Store) Unused(ctx context.Context, count int, batchID string) ([]*KeyRecord, error) {
	if count <= 0 {
		return nil, nil
	}
	status := StatusUnused
	records, err := s.List(ctx, Filter{Status: &status, BatchID: batchID})
	if err != nil {
		return nil, err
	}
	if len(records) > count {
		records = records[:count]
	}
	return records, nil
}

var allowedTransitions = map[Status][]Status{
	StatusUnused: {StatusActive, StatusRetired},
	StatusActive: {StatusRetired},
}

func transitionAllowed(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MarkActive transitions the record to active, recording which client
// consumes the key. A non-empty notes value overwrites the stored notes.
func (s *Store) MarkActive(ctx context.Context, pubkey, clientType, notes string) error {
	return s.transition(ctx, pubkey, StatusActive, clientType, notes)
}

// MarkRetired transitions the record to retired.
func (s *Store) MarkRetired(ctx context.Context, pubkey, notes string) error {
	return s.transition(ctx, pubkey, StatusRetired, "", notes)
}

func (s *Store) transition(ctx context.Context, pubkey string, target Status, clientType, notes string) error {
	rec, err := s.Get(ctx, pubkey)
	if err != nil {
		return err
	}
	changed := false
	if rec.Status != target {
		if !transitionAllowed(rec.Status, target) {
			return errors.Wrapf(ErrInvalidTransition, "%s -> %s for %s", rec.Status, target, abbrev(pubkey))
		}
		rec.Status = target
		changed = true
	}
	if clientType != "" && rec.ClientType != clientType {
		rec.ClientType = clientType
		changed = true
	}
	if notes != "" && rec.Notes != notes {
		rec.Notes = notes
		changed = true
	}
	if !changed {
		// Re-applying the current state with identical metadata is a
		// no-op; idempotent by construction.
		return nil
	}
	data, err := s.encode(rec)
	if err != nil {
		return err
	}
	version, err := s.kv.PutCAS(ctx, CanonicalPath(pubkey), data, rec.StoreVersion)
	if err != nil {
		return errors.Wrapf(err, "could not write %s transition for %s", target, abbrev(pubkey))
	}
	rec.StoreVersion = version
	log.WithFields(logrus.Fields{
		"record": abbrev(pubkey),
		"status": target.String(),
	}).Info("Updated key record status")
	return nil
}

func abbrev(pubkey string) string {
	if len(pubkey) <= 10 {
		return pubkey
	}
	return pubkey[:10] + "..."
}
