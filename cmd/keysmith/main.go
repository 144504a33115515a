// Package main defines the keysmith command line tool, which manages
// the full lifecycle of validator signing credentials: encrypted
// storage in a secret store, batch import and export, remote signer
// reconciliation, and legacy record migration.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/stakeops/keysmith/cmd/keysmith/migrate"
	"github.com/stakeops/keysmith/cmd/keysmith/records"
	"github.com/stakeops/keysmith/cmd/keysmith/signer"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

var appFlags = flags.Wrap(flags.Global())

func main() {
	app := cli.App{}
	app.Name = "keysmith"
	app.Usage = "manages validator signing key records in a secret store and keeps a remote signer in sync with them"
	app.Flags = appFlags
	app.Commands = append(app.Commands, records.Commands...)
	app.Commands = append(app.Commands, signer.Commands...)
	app.Commands = append(app.Commands, migrate.Commands...)
	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(flags.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					flags.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		level, err := logrus.ParseLevel(ctx.String(flags.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		formatter := new(prefixed.TextFormatter)
		formatter.TimestampFormat = "2006-01-02 15:04:05"
		formatter.FullTimestamp = true
		logrus.SetFormatter(formatter)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
