package records

import (
	"fmt"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/urfave/cli/v2"
)

func getRecord(c *cli.Context) error {
	pubkey := c.Args().First()
	if pubkey == "" {
		return errors.New("no pubkey provided")
	}
	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	rec, err := store.Get(c.Context, pubkey)
	if err != nil {
		return errors.Wrap(err, "could not read record")
	}
	printRecordDetail(rec)
	return nil
}

// printRecordDetail shows everything about one record except its
// secret fields; those only leave the store via the export commands.
func printRecordDetail(rec *keymanager.KeyRecord) {
	au := aurora.NewAurora(true)
	fmt.Printf("Validator pubkey:  %s\n", au.BrightCyan(rec.Pubkey).Bold())
	fmt.Printf("Status:            %s\n", au.Yellow(rec.Status.String()))
	fmt.Printf("Withdrawal pubkey: %s\n", rec.WithdrawalPubkey)
	fmt.Printf("Batch ID:          %s\n", rec.BatchID)
	fmt.Printf("Created:           %s\n", rec.CreatedAt.Format(time.RFC3339))
	if rec.ClientType != "" {
		fmt.Printf("Client type:       %s\n", rec.ClientType)
	}
	if rec.Notes != "" {
		fmt.Printf("Notes:             %s\n", rec.Notes)
	}
	fmt.Printf("Has mnemonic:      %t\n", rec.Mnemonic != "")
}
