package importer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/keymanager"
	bip39 "github.com/tyler-smith/go-bip39"
	keystorev4 "github.com/wealdtech/go-eth2-wallet-encryptor-keystorev4"
)

// ImportReport counts a bulk import's outcomes. Per-entry failures are
// logged and skipped; partial completion is the documented outcome, not
// an error.
type ImportReport struct {
	Imported int
	Skipped  int
	BatchID  string
}

// Import reads every entry of the bundle's public-key index, decrypts
// the matching keystore with its password file, and writes a
// status-unused record under canonical addressing. batchID groups the
// records; when empty a fresh one is generated.
func Import(ctx context.Context, store *keymanager.Store, bundleDir, batchID string) (*ImportReport, error) {
	entries, err := readIndex(bundleDir)
	if err != nil {
		return nil, err
	}
	if batchID == "" {
		batchID = fmt.Sprintf("batch-%s", uuid.New().String())
	}
	report := &ImportReport{BatchID: batchID}
	bar := progressbar.Default(int64(len(entries)), "importing keys")
	for _, entry := range entries {
		if err := bar.Add(1); err != nil {
			log.WithError(err).Debug("Could not update progress bar")
		}
		rec, err := recordFromEntry(bundleDir, entry, batchID)
		if err != nil {
			log.WithError(err).WithField("index", entry.Index).Warn("Skipping bundle entry")
			report.Skipped++
			continue
		}
		if err := store.Put(ctx, rec); err != nil {
			log.WithError(err).WithField("index", entry.Index).Warn("Skipping bundle entry")
			report.Skipped++
			continue
		}
		report.Imported++
	}
	log.WithFields(logrus.Fields{
		"imported": report.Imported,
		"skipped":  report.Skipped,
		"batch":    batchID,
	}).Info("Bundle import complete")
	return report, nil
}

func recordFromEntry(bundleDir string, entry IndexEntry, batchID string) (*keymanager.KeyRecord, error) {
	if entry.ValidatorPubkey == "" {
		return nil, errors.New("index entry has no validator pubkey")
	}
	ksPath, err := keystorePath(bundleDir, entry.Index)
	if err != nil {
		return nil, err
	}
	pwPath, err := passwordPath(bundleDir, entry.Index)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(ksPath)
	if err != nil {
		return nil, errors.Wrap(err, "could not read keystore file")
	}
	keystore := &Keystore{}
	if err := json.Unmarshal(raw, keystore); err != nil {
		return nil, errors.Wrap(err, "could not decode keystore json")
	}
	password, err := os.ReadFile(pwPath)
	if err != nil {
		return nil, errors.Wrap(err, "could not read password file")
	}
	decryptor := keystorev4.New()
	secret, err := decryptor.Decrypt(keystore.Crypto, strings.TrimSpace(string(password)))
	if err != nil {
		return nil, errors.Wrap(err, "could not decrypt keystore")
	}
	if entry.Mnemonic != "" && !bip39.IsMnemonicValid(entry.Mnemonic) {
		return nil, errors.New("index entry carries an invalid mnemonic")
	}
	return &keymanager.KeyRecord{
		Pubkey:           entry.ValidatorPubkey,
		SigningKey:       hex.EncodeToString(secret),
		WithdrawalPubkey: entry.WithdrawalPubkey,
		Mnemonic:         entry.Mnemonic,
		BatchID:          batchID,
		CreatedAt:        time.Now().UTC(),
		Status:           keymanager.StatusUnused,
	}, nil
}
