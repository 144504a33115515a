// Package reconciler converges the remote signer's loaded-key set onto
// the store's active records. A run regenerates the signer-visible
// secrets and the per-key configuration files, touches only what
// changed, and reloads the signer only when something did change, so a
// second run over unchanged state is a fixed point: zero writes, zero
// reloads.
package reconciler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/io/file"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/stakeops/keysmith/vault"
	"github.com/stakeops/keysmith/web3signer"
	"gopkg.in/yaml.v2"
)

var log = logrus.WithField("prefix", "reconciler")

// Config wires the reconciler's collaborators and the connection
// parameters baked into generated signer config entries.
type Config struct {
	Store  *keymanager.Store
	KV     vault.KV
	Signer *web3signer.Client

	// KeysDir is the signer's key configuration directory.
	KeysDir string

	// Connection parameters the signer uses to reach the secret store.
	VaultHost     string
	VaultPort     int
	VaultMount    string
	VaultToken    string
	TimeoutMillis int
}

// Service runs reconciliation passes. Strictly sequential: records are
// processed one at a time in listing order.
type Service struct {
	cfg Config
}

// New constructs a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.KV == nil || cfg.Signer == nil {
		return nil, errors.New("reconciler: store, kv and signer are all required")
	}
	if cfg.KeysDir == "" {
		return nil, errors.New("reconciler: signer keys directory is required")
	}
	if cfg.VaultMount == "" {
		cfg.VaultMount = "secret"
	}
	if cfg.TimeoutMillis == 0 {
		cfg.TimeoutMillis = 10000
	}
	return &Service{cfg: cfg}, nil
}

// SyncReport summarizes one reconciliation pass. Batch operations
// report counts instead of aborting on per-record failures.
type SyncReport struct {
	ActiveRecords  int
	FailedRecords  int
	SecretsWritten int
	FilesWritten   int
	FilesDeleted   int
	Reloaded       bool
	Verified       bool

	// MissingFromSigner and UnexpectedInSigner describe a post-reload
	// mismatch. Reported, never rolled back: there is no transactional
	// guarantee across store, filesystem and signer.
	MissingFromSigner  []string
	UnexpectedInSigner []string
}

// SyncActive converges signer-visible secrets and config files onto the
// set of active records, then reloads and verifies the signer if
// anything changed. Connectivity to both the store and the signer is
// verified up front; no partial sync is attempted when either is down.
func (s *Service) SyncActive(ctx context.Context) (*SyncReport, error) {
	if err := s.cfg.KV.Health(ctx); err != nil {
		return nil, errors.Wrap(err, "secret store is unreachable, aborting sync")
	}
	if err := s.cfg.Signer.Upcheck(ctx); err != nil {
		return nil, errors.Wrap(err, "remote signer is unreachable, aborting sync")
	}

	active := keymanager.StatusActive
	records, err := s.cfg.Store.List(ctx, keymanager.Filter{Status: &active})
	if err != nil {
		return nil, errors.Wrap(err, "could not list active records")
	}

	report := &SyncReport{ActiveRecords: len(records)}
	desired := make(map[string][]byte, len(records))
	// Config files of active records whose sync step failed are kept
	// as-is; a transient failure must not unload a key that is still
	// supposed to be signing.
	failed := make(map[string]bool)
	for _, rec := range records {
		if err := s.ensureSignerSecret(ctx, rec, report); err != nil {
			log.WithError(err).WithField("record", abbrev(rec.Pubkey)).Warn("Skipping record in sync")
			report.FailedRecords++
			failed[ConfigFileName(rec.Pubkey)] = true
			continue
		}
		entry := s.configEntry(rec.Pubkey)
		encoded, err := yaml.Marshal(entry)
		if err != nil {
			log.WithError(err).WithField("record", abbrev(rec.Pubkey)).Warn("Skipping record in sync")
			report.FailedRecords++
			failed[ConfigFileName(rec.Pubkey)] = true
			continue
		}
		desired[ConfigFileName(rec.Pubkey)] = encoded
	}

	if err := s.applyConfigFiles(desired, failed, report); err != nil {
		return nil, err
	}

	changed := report.SecretsWritten+report.FilesWritten+report.FilesDeleted > 0
	if changed {
		if err := s.cfg.Signer.Reload(ctx); err != nil {
			return nil, errors.Wrap(err, "could not reload remote signer")
		}
		report.Reloaded = true
		s.verifyLoadedKeys(ctx, records, report)
	} else {
		report.Verified = true
	}
	log.WithFields(logrus.Fields{
		"active":   report.ActiveRecords,
		"failed":   report.FailedRecords,
		"written":  report.FilesWritten,
		"deleted":  report.FilesDeleted,
		"reloaded": report.Reloaded,
	}).Info("Reconciliation pass complete")
	return report, nil
}

// ensureSignerSecret re-stores the raw signing secret under the
// signer-specific path. The signer's backend consumes this field
// directly, so unlike record fields it is not envelope-encrypted; the
// path shape and field name are pinned by the signer's contract.
func (s *Service) ensureSignerSecret(ctx context.Context, rec *keymanager.KeyRecord, report *SyncReport) error {
	path := fmt.Sprintf("%s/%s", SignerSecretPrefix, rec.Pubkey)
	existing, _, err := s.cfg.KV.Get(ctx, path)
	if err == nil {
		if current, ok := existing[SignerSecretField].(string); ok && current == rec.SigningKey {
			return nil
		}
	} else if !errors.Is(err, vault.ErrNotFound) {
		return errors.Wrap(err, "could not read signer secret")
	}
	if _, err := s.cfg.KV.Put(ctx, path, map[string]interface{}{SignerSecretField: rec.SigningKey}); err != nil {
		return errors.Wrap(err, "could not write signer secret")
	}
	report.SecretsWritten++
	return nil
}

func (s *Service) configEntry(pubkey string) *ConfigEntry {
	return &ConfigEntry{
		Type:       "hashicorp",
		KeyType:    "BLS",
		TLSEnabled: "false",
		KeyPath:    fmt.Sprintf("/v1/%s/data/%s/%s", s.cfg.VaultMount, SignerSecretPrefix, pubkey),
		KeyName:    SignerSecretField,
		ServerHost: s.cfg.VaultHost,
		ServerPort: fmt.Sprintf("%d", s.cfg.VaultPort),
		Timeout:    fmt.Sprintf("%d", s.cfg.TimeoutMillis),
		Token:      s.cfg.VaultToken,
	}
}

// applyConfigFiles diffs the desired file set against the directory and
// touches only differences: new/changed files are written, files no
// longer backed by an active record are deleted. Files named in failed
// belong to active records that could not be synced this pass and are
// exempt from deletion.
func (s *Service) applyConfigFiles(desired map[string][]byte, failed map[string]bool, report *SyncReport) error {
	if err := file.MkdirAll(s.cfg.KeysDir); err != nil {
		return errors.Wrap(err, "could not create signer keys directory")
	}
	existing, err := os.ReadDir(s.cfg.KeysDir)
	if err != nil {
		return errors.Wrap(err, "could not read signer keys directory")
	}
	for _, info := range existing {
		name := info.Name()
		if info.IsDir() || !IsConfigFileName(name) || failed[name] {
			continue
		}
		if _, want := desired[name]; !want {
			if err := os.Remove(filepath.Join(s.cfg.KeysDir, name)); err != nil {
				return errors.Wrapf(err, "could not delete stale config file %s", name)
			}
			report.FilesDeleted++
		}
	}
	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		target := filepath.Join(s.cfg.KeysDir, name)
		current, err := os.ReadFile(target)
		if err == nil && bytes.Equal(current, desired[name]) {
			continue
		}
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "could not read config file %s", name)
		}
		if err := file.WriteFile(target, desired[name]); err != nil {
			return errors.Wrapf(err, "could not write config file %s", name)
		}
		report.FilesWritten++
	}
	return nil
}

func (s *Service) verifyLoadedKeys(ctx context.Context, records []*keymanager.KeyRecord, report *SyncReport) {
	loaded, err := s.cfg.Signer.LoadedPublicKeys(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not verify signer's loaded keys after reload")
		return
	}
	loadedSet := make(map[string]bool, len(loaded))
	for _, key := range loaded {
		loadedSet[normalizeKey(key)] = true
	}
	activeSet := make(map[string]bool, len(records))
	for _, rec := range records {
		key := normalizeKey(rec.Pubkey)
		activeSet[key] = true
		if !loadedSet[key] {
			report.MissingFromSigner = append(report.MissingFromSigner, rec.Pubkey)
		}
	}
	for _, key := range loaded {
		if !activeSet[normalizeKey(key)] {
			report.UnexpectedInSigner = append(report.UnexpectedInSigner, key)
		}
	}
	report.Verified = len(report.MissingFromSigner) == 0 && len(report.UnexpectedInSigner) == 0
	if !report.Verified {
		log.WithFields(logrus.Fields{
			"missing":    len(report.MissingFromSigner),
			"unexpected": len(report.UnexpectedInSigner),
		}).Warn("Signer's loaded keys do not match active records")
	}
}

func normalizeKey(key string) string {
	return strings.TrimPrefix(strings.ToLower(key), "0x")
}

func abbrev(pubkey string) string {
	if len(pubkey) <= 10 {
		return pubkey
	}
	return pubkey[:10] + "..."
}
