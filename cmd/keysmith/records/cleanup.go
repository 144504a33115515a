package records

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/urfave/cli/v2"
)

func cleanupRecords(c *cli.Context) error {
	ok, err := common.ConfirmAction(c, "Destroy all corrupted and unclassifiable records")
	if err != nil {
		return err
	}
	if !ok {
		log.Info("Cleanup aborted")
		return nil
	}
	svc, err := common.NewReconciler(c)
	if err != nil {
		return err
	}
	report, err := svc.CleanupOrphans(c.Context)
	if err != nil {
		return errors.Wrap(err, "cleanup failed")
	}
	log.WithFields(logrus.Fields{
		"scanned":   report.Scanned,
		"destroyed": report.Destroyed,
	}).Info("Cleanup finished")
	return nil
}
