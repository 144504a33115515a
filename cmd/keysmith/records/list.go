package records

import (
	"fmt"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/cmd/keysmith/common"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/urfave/cli/v2"
)

func listRecords(c *cli.Context) error {
	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	filter, err := filterFromFlags(c)
	if err != nil {
		return err
	}
	recs, err := store.List(c.Context, filter)
	if err != nil {
		return errors.Wrap(err, "could not list records")
	}
	printRecords(recs)
	return nil
}

func listUnused(c *cli.Context) error {
	store, _, err := common.NewStore(c)
	if err != nil {
		return err
	}
	recs, err := store.Unused(c.Context, c.Int(flags.CountFlag.Name), c.String(flags.BatchIDFlag.Name))
	if err != nil {
		return errors.Wrap(err, "could not list unused records")
	}
	printRecords(recs)
	return nil
}

func filterFromFlags(c *cli.Context) (keymanager.Filter, error) {
	filter := keymanager.Filter{
		BatchID:    c.String(flags.BatchIDFlag.Name),
		ClientType: c.String(flags.ClientTypeFlag.Name),
	}
	if raw := c.String(flags.StatusFlag.Name); raw != "" {
		status, err := keymanager.ParseStatus(raw)
		if err != nil {
			return keymanager.Filter{}, err
		}
		filter.Status = &status
	}
	if raw := c.String(flags.CreatedAfterFlag.Name); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return keymanager.Filter{}, errors.Wrap(err, "could not parse --created-after")
		}
		filter.CreatedAfter = &t
	}
	if raw := c.String(flags.CreatedBeforeFlag.Name); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return keymanager.Filter{}, errors.Wrap(err, "could not parse --created-before")
		}
		filter.CreatedBefore = &t
	}
	return filter, nil
}

func printRecords(recs []*keymanager.KeyRecord) {
	au := aurora.NewAurora(true)
	fmt.Printf("Found %d key record(s)\n", len(recs))
	for _, rec := range recs {
		status := au.Yellow(rec.Status.String())
		switch rec.Status {
		case keymanager.StatusActive:
			status = au.BrightGreen(rec.Status.String())
		case keymanager.StatusRetired:
			status = au.Red(rec.Status.String())
		}
		clientType := rec.ClientType
		if clientType == "" {
			clientType = "-"
		}
		fmt.Printf(
			"%s | %s | batch %s | client %s | created %s\n",
			au.BrightCyan(rec.Pubkey).Bold(),
			status,
			rec.BatchID,
			clientType,
			rec.CreatedAt.Format(time.RFC3339),
		)
	}
}
