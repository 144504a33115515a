package signer

import (
	"fmt"

	"github.com/logrusorgru/aurora"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/stakeops/keysmith/web3signer"
	"github.com/urfave/cli/v2"
)

func signerStatus(c *cli.Context) error {
	au := aurora.NewAurora(true)

	client, err := common.NewVaultClient(c)
	if err != nil {
		return err
	}
	if err := client.Health(c.Context); err != nil {
		fmt.Printf("Secret store: %s (%v)\n", au.Red("unreachable"), err)
	} else {
		fmt.Printf("Secret store: %s\n", au.BrightGreen("ok"))
	}

	signerClient, err := web3signer.NewClient(c.String(flags.SignerURLFlag.Name))
	if err != nil {
		return err
	}
	if err := signerClient.Upcheck(c.Context); err != nil {
		fmt.Printf("Remote signer: %s (%v)\n", au.Red("unreachable"), err)
		return nil
	}
	fmt.Printf("Remote signer: %s\n", au.BrightGreen("ok"))

	loaded, err := signerClient.LoadedPublicKeys(c.Context)
	if err != nil {
		log.WithError(err).Warn("Could not list loaded signer keys")
	} else {
		fmt.Printf("Loaded keys:  %d\n", len(loaded))
	}

	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	active := keymanager.StatusActive
	records, err := store.List(c.Context, keymanager.Filter{Status: &active})
	if err != nil {
		log.WithError(err).Warn("Could not list active records")
		return nil
	}
	fmt.Printf("Active records: %d\n", len(records))
	return nil
}
