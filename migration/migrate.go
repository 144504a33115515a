// Package migration moves key records from legacy hash-based addressing
// to canonical addressing and verifies completion. It is the only code
// path that removes legacy entries; everything else treats them as
// read-only migration candidates.
package migration

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/stakeops/keysmith/vault"
)

var log = logrus.WithField("prefix", "migration")

// Migrator re-addresses legacy entries one at a time.
type Migrator struct {
	kv    vault.KV
	store *keymanager.Store
}

// New constructs a Migrator.
func New(kv vault.KV, store *keymanager.Store) *Migrator {
	return &Migrator{kv: kv, store: store}
}

// Report summarizes a migration run. Unmigrated entries were left in
// place: either their payload was unreadable or no known identifier
// hashes to their name.
type Report struct {
	LegacyFound int
	Migrated    int
	Unmigrated  int
}

// Run enumerates legacy-shaped names under the record prefix, resolves
// each to its owning identifier by rehashing every known identifier,
// writes the payload under the canonical path, and destroys the legacy
// entry only after the canonical copy reads back. An entry that cannot
// be matched is reported, not fatal.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	names, err := m.kv.List(ctx, keymanager.RecordPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "could not list record namespace")
	}
	var legacy []string
	for _, name := range names {
		if keymanager.IsLegacyName(name) {
			legacy = append(legacy, name)
		}
	}
	report := &Report{LegacyFound: len(legacy)}
	if len(legacy) == 0 {
		return report, nil
	}

	// Reverse lookup table: legacy hash -> identifier, built from every
	// readable payload in the namespace. The O(n) scan is the legacy
	// scheme's lookup cost, paid once here.
	byHash, err := m.knownIdentifiers(ctx, names)
	if err != nil {
		return nil, err
	}

	for _, name := range legacy {
		pubkey, ok := byHash[name]
		if !ok {
			log.WithField("entry", name).Warn("No known identifier hashes to legacy entry; leaving in place")
			report.Unmigrated++
			continue
		}
		if err := m.migrateOne(ctx, name, pubkey); err != nil {
			log.WithError(err).WithField("entry", name).Warn("Could not migrate legacy entry; leaving in place")
			report.Unmigrated++
			continue
		}
		report.Migrated++
	}
	log.WithFields(logrus.Fields{
		"found":      report.LegacyFound,
		"migrated":   report.Migrated,
		"unmigrated": report.Unmigrated,
	}).Info("Migration run complete")
	return report, nil
}

func (m *Migrator) knownIdentifiers(ctx context.Context, names []string) (map[string]string, error) {
	byHash := make(map[string]string)
	for _, name := range names {
		data, _, err := m.kv.Get(ctx, keymanager.RecordPrefix+"/"+name)
		if err != nil {
			continue
		}
		pubkey, ok := data["pubkey"].(string)
		if !ok || pubkey == "" {
			continue
		}
		byHash[keymanager.LegacyName(pubkey)] = pubkey
	}
	return byHash, nil
}

func (m *Migrator) migrateOne(ctx context.Context, legacyName, pubkey string) error {
	legacyPath := keymanager.RecordPrefix + "/" + legacyName
	data, _, err := m.kv.Get(ctx, legacyPath)
	if err != nil {
		return errors.Wrap(err, "could not read legacy payload")
	}
	canonical := keymanager.CanonicalPath(pubkey)
	if _, err := m.kv.Put(ctx, canonical, data); err != nil {
		return errors.Wrap(err, "could not write canonical copy")
	}
	// Confirm before removing the only other copy.
	if _, _, err := m.kv.Get(ctx, canonical); err != nil {
		return errors.Wrap(err, "canonical copy did not read back")
	}
	if err := m.kv.Destroy(ctx, legacyPath); err != nil {
		return errors.Wrap(err, "could not destroy legacy entry")
	}
	log.WithFields(logrus.Fields{
		"entry":  legacyName,
		"record": abbrev(pubkey),
	}).Info("Migrated legacy entry")
	return nil
}

// Verify re-enumerates legacy-shaped names; success requires zero.
func (m *Migrator) Verify(ctx context.Context) error {
	names, err := m.kv.List(ctx, keymanager.RecordPrefix)
	if err != nil {
		return errors.Wrap(err, "could not list record namespace")
	}
	remaining := 0
	for _, name := range names {
		if keymanager.IsLegacyName(name) {
			remaining++
		}
	}
	if remaining != 0 {
		return errors.Errorf("%d legacy entries remain", remaining)
	}
	return nil
}

func abbrev(pubkey string) string {
	if len(pubkey) <= 10 {
		return pubkey
	}
	return pubkey[:10] + "..."
}
