package records

import (
	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/urfave/cli/v2"
)

func activateRecord(c *cli.Context) error {
	pubkey := c.Args().First()
	if pubkey == "" {
		return errors.New("no pubkey provided")
	}
	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	clientType := c.String(flags.ClientTypeFlag.Name)
	notes := c.String(flags.NotesFlag.Name)
	if err := store.MarkActive(c.Context, pubkey, clientType, notes); err != nil {
		return errors.Wrap(err, "could not activate record")
	}
	log.WithField("pubkey", pubkey).Info("Record marked active")
	return nil
}

func retireRecord(c *cli.Context) error {
	pubkey := c.Args().First()
	if pubkey == "" {
		return errors.New("no pubkey provided")
	}
	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	notes := c.String(flags.NotesFlag.Name)
	if err := store.MarkRetired(c.Context, pubkey, notes); err != nil {
		return errors.Wrap(err, "could not retire record")
	}
	log.WithField("pubkey", pubkey).Info("Record marked retired")
	return nil
}
