package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/io/file"
	"github.com/stakeops/keysmith/keymanager"
)

// ExportMnemonics writes one mnemonic backup file per record into
// targetDir. Records that carry no mnemonic are skipped; the mnemonic
// is the only recovery path for the withdrawal credentials, so the file
// also names the keys it belongs to.
func ExportMnemonics(ctx context.Context, store *keymanager.Store, targetDir string, activeOnly bool) (*ExportReport, error) {
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
		if rec.Mnemonic == "" {
			log.WithField("record", rec.Pubkey).Warn("Record has no mnemonic, skipping")
			report.Skipped++
			continue
		}
		if err := exportMnemonic(rec, targetDir); err != nil {
			log.WithError(err).WithField("record", rec.Pubkey).Warn("Skipping record in mnemonic export")
			report.Skipped++
			continue
		}
		report.Exported++
	}
	log.WithFields(logrus.Fields{
		"exported": report.Exported,
		"skipped":  report.Skipped,
		"dir":      targetDir,
	}).Info("Mnemonic export complete")
	return report, nil
}

func exportMnemonic(rec *keymanager.KeyRecord, targetDir string) error {
	body := fmt.Sprintf(
		"Validator Pubkey: %s\nWithdrawal Pubkey: %s\nBatch ID: %s\nCreated: %s\nStatus: %s\n\nMnemonic:\n%s\n",
		rec.Pubkey,
		rec.WithdrawalPubkey,
		rec.BatchID,
		rec.CreatedAt.Format(time.RFC3339),
		rec.Status,
		rec.Mnemonic,
	)
	name := fmt.Sprintf("mnemonic-%s.txt", exportNamePrefix(rec.Pubkey))
	return file.WriteFile(filepath.Join(targetDir, name), []byte(body))
}
