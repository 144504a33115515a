package importer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/io/file"
	"github.com/stakeops/keysmith/keymanager"
	keystorev4 "github.com/wealdtech/go-eth2-wallet-encryptor-keystorev4"
)

// ExportReport counts a bulk export's outcomes.
type ExportReport struct {
	Exported int
	Skipped  int
}

// Export writes one keystore file and one password file per record into
// targetDir, in the layout the remote signer's file-keystore tooling
// expects. With activeOnly set, only active records are exported.
// Re-running overwrites identically-named files.
func Export(ctx context.Context, store *keymanager.Store, targetDir string, activeOnly bool) (*ExportReport, error) {
	filter := keymanager.Filter{}
	if activeOnly {
		active := keymanager.StatusActive
		filter.Status = &active
	}
	records, err := store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := file.MkdirAll(targetDir); err != nil {
		return nil, errors.Wrap(err, "could not create export directory")
	}
	report := &ExportReport{}
	for _, rec := range records {
		if err := exportRecord(rec, targetDir); err != nil {
			log.WithError(err).WithField("record", rec.Pubkey).Warn("Skipping record in export")
			report.Skipped++
			continue
		}
		report.Exported++
	}
	log.WithFields(logrus.Fields{
		"exported": report.Exported,
		"skipped":  report.Skipped,
		"dir":      targetDir,
	}).Info("Export complete")
	return report, nil
}

func exportRecord(rec *keymanager.KeyRecord, targetDir string) error {
	secret, err := hex.DecodeString(strings.TrimPrefix(rec.SigningKey, "0x"))
	if err != nil {
		return errors.Wrap(err, "signing key is not valid hex")
	}
	password, err := generatePassword()
	if err != nil {
		return errors.Wrap(err, "could not generate keystore password")
	}
	encryptor := keystorev4.New()
	cryptoFields, err := encryptor.Encrypt(secret, password)
	if err != nil {
		return errors.Wrap(err, "could not encrypt keystore")
	}
	keystore := &Keystore{
		Crypto:  cryptoFields,
		ID:      uuid.New().String(),
		Pubkey:  strings.TrimPrefix(rec.Pubkey, "0x"),
		Version: 4,
	}
	encoded, err := json.MarshalIndent(keystore, "", "\t")
	if err != nil {
		return errors.Wrap(err, "could not marshal keystore")
	}
	prefix := exportNamePrefix(rec.Pubkey)
	if err := file.WriteFile(filepath.Join(targetDir, fmt.Sprintf("keystore-%s.json", prefix)), encoded); err != nil {
		return errors.Wrap(err, "could not write keystore file")
	}
	if err := file.WriteFile(filepath.Join(targetDir, fmt.Sprintf("password-%s.txt", prefix)), []byte(password)); err != nil {
		return errors.Wrap(err, "could not write password file")
	}
	return nil
}

func generatePassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func exportNamePrefix(pubkey string) string {
	trimmed := strings.TrimPrefix(pubkey, "0x")
	if len(trimmed) > 8 {
		trimmed = trimmed[:8]
	}
	return trimmed
}
