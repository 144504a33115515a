// Package signer hosts the remote signer reconciliation subcommands.
package signer

import (
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "signer")

// Commands is the signer command tree.
var Commands = []*cli.Command{
	{
		Name:  "signer",
		Usage: "reconcile the remote signer with active key records",
		Subcommands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "push active records to the remote signer and reload it",
				Flags: []cli.Flag{
					flags.SignerURLFlag,
					flags.SignerKeysDirFlag,
				},
				Action: syncSigner,
			},
			{
				Name:  "status",
				Usage: "report store and signer connectivity and loaded key counts",
				Flags: []cli.Flag{
					flags.SignerURLFlag,
				},
				Action: signerStatus,
			},
		},
	},
}
