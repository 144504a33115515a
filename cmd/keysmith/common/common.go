// Package common wires CLI flags into the service constructors shared
// by every subcommand.
package common

import (
	"net/url"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/cmd/keysmith/flags"
	"github.com/stakeops/keysmith/crypto/envelope"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/stakeops/keysmith/migration"
	"github.com/stakeops/keysmith/reconciler"
	"github.com/stakeops/keysmith/vault"
	"github.com/stakeops/keysmith/web3signer"
	"github.com/urfave/cli/v2"
)

// NewVaultClient builds the secret store client from CLI flags.
func NewVaultClient(c *cli.Context) (*vault.Client, error) {
	token := c.String(flags.VaultTokenFlag.Name)
	if token == "" {
		return nil, errors.New("no vault token provided; set --vault-token or VAULT_TOKEN")
	}
	return vault.New(vault.Config{
		Addr:  c.String(flags.VaultAddrFlag.Name),
		Token: token,
		Mount: c.String(flags.VaultMountFlag.Name),
	})
}

// NewStore builds the record store, opening the encryption envelope on
// the way.
func NewStore(c *cli.Context) (*keymanager.Store, *vault.Client, error) {
	client, err := NewVaultClient(c)
	if err != nil {
		return nil, nil, err
	}
	env, err := envelope.Open(c.Context, client)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not open encryption envelope")
	}
	return keymanager.NewStore(client, env), client, nil
}

// NewReconciler builds the reconciliation service from CLI flags.
func NewReconciler(c *cli.Context) (*reconciler.Service, error) {
	store, client, err := NewStore(c)
	if err != nil {
		return nil, err
	}
	signer, err := web3signer.NewClient(c.String(flags.SignerURLFlag.Name))
	if err != nil {
		return nil, err
	}
	host, port, err := splitVaultAddr(c.String(flags.VaultAddrFlag.Name))
	if err != nil {
		return nil, err
	}
	return reconciler.New(reconciler.Config{
		Store:      store,
		KV:         client,
		Signer:     signer,
		KeysDir:    c.String(flags.SignerKeysDirFlag.Name),
		VaultHost:  host,
		VaultPort:  port,
		VaultMount: c.String(flags.VaultMountFlag.Name),
		VaultToken: c.String(flags.VaultTokenFlag.Name),
	})
}

// NewMigrator builds the migration tool from CLI flags.
func NewMigrator(c *cli.Context) (*migration.Migrator, error) {
	store, client, err := NewStore(c)
	if err != nil {
		return nil, err
	}
	return migration.New(client, store), nil
}

// ConfirmAction prompts before a destructive operation unless --force
// was passed. Declining aborts the command without error.
func ConfirmAction(c *cli.Context, promptText string) (bool, error) {
	if c.Bool(flags.ForceFlag.Name) {
		return true, nil
	}
	prompt := promptui.Prompt{
		Label:     promptText,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort || err == promptui.ErrInterrupt || err == promptui.ErrEOF {
			return false, nil
		}
		return false, errors.Wrap(err, "could not read confirmation")
	}
	return true, nil
}

func splitVaultAddr(addr string) (string, int, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", 0, errors.Wrap(err, "could not parse vault address")
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		if u.Scheme == "https" {
			portStr = "443"
		} else {
			portStr = "80"
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errors.Wrap(err, "could not parse vault port")
	}
	return host, port, nil
}
