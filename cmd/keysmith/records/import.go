package records

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/stakeops/keysmith/keymanager/importer"
	"github.com/urfave/cli/v2"
)

func importBundle(c *cli.Context) error {
	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	report, err := importer.Import(
		c.Context,
		store,
		c.String(flags.BundleDirFlag.Name),
		c.String(flags.BatchIDFlag.Name),
	)
	if err != nil {
		return errors.Wrap(err, "could not import bundle")
	}
	log.WithFields(logrus.Fields{
		"imported": report.Imported,
		"skipped":  report.Skipped,
		"batchID":  report.BatchID,
	}).Info("Bundle import finished")
	return nil
}

func exportRecords(c *cli.Context) error {
	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	outDir := c.String(flags.OutDirFlag.Name)
	activeOnly := c.Bool(flags.ActiveOnlyFlag.Name)
	var report *importer.ExportReport
	switch format := c.String(flags.FormatFlag.Name); format {
	case "keystore":
		report, err = importer.Export(c.Context, store, outDir, activeOnly)
	case "mnemonic":
		report, err = importer.ExportMnemonics(c.Context, store, outDir, activeOnly)
	default:
		return errors.Errorf("unrecognized export format %q", format)
	}
	if err != nil {
		return errors.Wrap(err, "could not export records")
	}
	log.WithFields(logrus.Fields{
		"exported": report.Exported,
		"dir":      c.String(flags.OutDirFlag.Name),
	}).Info("Export finished")
	return nil
}
