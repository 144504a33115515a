// Package migrate hosts the legacy record migration subcommands.
package migrate

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "migrate")

// Commands is the migrate command tree.
var Commands = []*cli.Command{
	{
		Name:  "migrate",
		Usage: "move legacy hash-named records to canonical pubkey names",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "migrate all matchable legacy records",
				Flags: []cli.Flag{
					flags.ForceFlag,
				},
				Action: runMigration,
			},
			{
				Name:   "verify",
				Usage:  "fail unless no legacy-named records remain",
				Action: verifyMigration,
			},
		},
	},
}

func runMigration(c *cli.Context) error {
	ok, err := common.ConfirmAction(c, "Migrate all legacy-named records to canonical names")
	if err != nil {
		return err
	}
	if !ok {
		log.Info("Migration aborted")
		return nil
	}
	m, err := common.NewMigrator(c)
	if err != nil {
		return err
	}
	report, err := m.Run(c.Context)
	if err != nil {
		return errors.Wrap(err, "migration failed")
	}
	log.WithFields(logrus.Fields{
		"legacyFound": report.LegacyFound,
		"migrated":    report.Migrated,
		"unmigrated":  report.Unmigrated,
	}).Info("Migration finished")
	if report.Unmigrated > 0 {
		log.Warn("Some legacy records could not be matched to a public key and were left in place")
	}
	return nil
}

func verifyMigration(c *cli.Context) error {
	m, err := common.NewMigrator(c)
	if err != nil {
		return err
	}
	if err := m.Verify(c.Context); err != nil {
		return errors.Wrap(err, "migration verification failed")
	}
	log.Info("No legacy-named records remain")
	return nil
}
