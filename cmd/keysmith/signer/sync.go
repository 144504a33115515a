package signer

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/urfave/cli/v2"
)

func syncSigner(c *cli.Context) error {
	svc, err := common.NewReconciler(c)
	if err != nil {
		return err
	}
	report, err := svc.SyncActive(c.Context)
	if err != nil {
		return errors.Wrap(err, "sync failed")
	}
	if len(report.MissingFromSigner) > 0 || len(report.UnexpectedInSigner) > 0 {
		log.WithFields(logrus.Fields{
			"missing":    report.MissingFromSigner,
			"unexpected": report.UnexpectedInSigner,
		}).Warn("Signer loaded-key set does not match active records")
	}
	log.WithFields(logrus.Fields{
		"active":   report.ActiveRecords,
		"failed":   report.FailedRecords,
		"secrets":  report.SecretsWritten,
		"files":    report.FilesWritten,
		"deleted":  report.FilesDeleted,
		"reloaded": report.Reloaded,
		"verified": report.Verified,
	}).Info("Signer sync finished")
	return nil
}
