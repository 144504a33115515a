// Package records hosts the record lifecycle subcommands.
package records

import (
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "records")

// Commands is the records command tree.
var Commands = []*cli.Command{
	{
		Name:  "records",
		Usage: "manage validator key records in the secret store",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list key records, optionally filtered",
				Flags: []cli.Flag{
					flags.StatusFlag,
					flags.BatchIDFlag,
					flags.ClientTypeFlag,
					flags.CreatedAfterFlag,
					flags.CreatedBeforeFlag,
				},
				Action: listRecords,
			},
			{
				Name:      "get",
				Usage:     "show one key record in detail",
				ArgsUsage: "<pubkey>",
				Action:    getRecord,
			},
			{
				Name:      "activate",
				Usage:     "mark a key record active for a consuming client",
				ArgsUsage: "<pubkey>",
				Flags: []cli.Flag{
					flags.ClientTypeFlag,
					flags.NotesFlag,
				},
				Action: activateRecord,
			},
			{
				Name:      "retire",
				Usage:     "mark a key record retired",
				ArgsUsage: "<pubkey>",
				Flags: []cli.Flag{
					flags.NotesFlag,
				},
				Action: retireRecord,
			},
			{
				Name:  "unused",
				Usage: "show unused key records",
				Flags: []cli.Flag{
					flags.CountFlag,
					flags.BatchIDFlag,
				},
				Action: listUnused,
			},
			{
				Name:  "import",
				Usage: "bulk-import a local keystore bundle",
				Flags: []cli.Flag{
					flags.BundleDirFlag,
					flags.BatchIDFlag,
				},
				Action: importBundle,
			},
			{
				Name:  "export",
				Usage: "export records as keystore files or mnemonic backups",
				Flags: []cli.Flag{
					flags.OutDirFlag,
					flags.FormatFlag,
					flags.ActiveOnlyFlag,
				},
				Action: exportRecords,
			},
			{
				Name:  "cleanup",
				Usage: "destroy corrupted or unclassifiable records",
				Flags: []cli.Flag{
					flags.ForceFlag,
				},
				Action: cleanupRecords,
			},
		},
	},
}
