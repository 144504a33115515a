// Package flags defines all CLI flags for the keysmith binary.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// VaultAddrFlag is the secret store's base URL.
	VaultAddrFlag = &cli.StringFlag{
		Name:    "vault-addr",
		Usage:   "Base URL of the secret store",
		Value:   "http://localhost:8200",
		EnvVars: []string{"VAULT_ADDR"},
	}
	// VaultTokenFlag authenticates against the secret store.
	VaultTokenFlag = &cli.StringFlag{
		Name:    "vault-token",
		Usage:   "Token used to authenticate against the secret store",
		EnvVars: []string{"VAULT_TOKEN"},
	}
	// VaultMountFlag is the KV v2 mount holding all managed secrets.
	VaultMountFlag = &cli.StringFlag{
		Name:  "vault-mount",
		Usage: "KV v2 mount point holding key records",
		Value: "secret",
	}
	// SignerURLFlag is the remote signer's base URL.
	SignerURLFlag = &cli.StringFlag{
		Name:  "signer-url",
		Usage: "Base URL of the remote signer",
		Value: "http://localhost:9000",
	}
	// SignerKeysDirFlag is the directory of generated signer key configs.
	SignerKeysDirFlag = &cli.StringFlag{
		Name:  "keys-dir",
		Usage: "Directory the remote signer scans for key configuration files",
		Value: "infra/web3signer/keys",
	}
	// VerbosityFlag sets the logging level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	// ConfigFileFlag loads flag values from a YAML file.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "Path to a YAML file with flag values",
	}

	// StatusFlag filters listings by lifecycle status.
	StatusFlag = &cli.StringFlag{
		Name:  "status",
		Usage: "Filter by status (unused, active, retired)",
	}
	// BatchIDFlag filters listings by generation batch.
	BatchIDFlag = &cli.StringFlag{
		Name:  "batch-id",
		Usage: "Filter by batch id",
	}
	// ClientTypeFlag filters listings by consuming client.
	ClientTypeFlag = &cli.StringFlag{
		Name:  "client-type",
		Usage: "Filter by client type (e.g. prysm, lighthouse, teku)",
	}
	// CreatedAfterFlag filters listings by creation time lower bound.
	CreatedAfterFlag = &cli.StringFlag{
		Name:  "created-after",
		Usage: "Only records created after this RFC3339 timestamp",
	}
	// CreatedBeforeFlag filters listings by creation time upper bound.
	CreatedBeforeFlag = &cli.StringFlag{
		Name:  "created-before",
		Usage: "Only records created before this RFC3339 timestamp",
	}
	// NotesFlag attaches free-text audit notes to a transition.
	NotesFlag = &cli.StringFlag{
		Name:  "notes",
		Usage: "Free-text notes recorded with the status change",
	}
	// CountFlag bounds how many unused records to return.
	CountFlag = &cli.IntFlag{
		Name:  "count",
		Usage: "Number of records to return",
		Value: 1,
	}
	// BundleDirFlag points at a local keystore bundle to import.
	BundleDirFlag = &cli.StringFlag{
		Name:     "bundle-dir",
		Usage:    "Directory containing the keystore bundle to import",
		Required: true,
	}
	// OutDirFlag is the export target directory.
	OutDirFlag = &cli.StringFlag{
		Name:     "out-dir",
		Usage:    "Directory to export keystore and password files into",
		Required: true,
	}
	// FormatFlag selects the export form.
	FormatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Export format (keystore, mnemonic)",
		Value: "keystore",
	}
	// ActiveOnlyFlag restricts an export to active records.
	ActiveOnlyFlag = &cli.BoolFlag{
		Name:  "active-only",
		Usage: "Only export records with status active",
	}
	// ForceFlag skips interactive confirmation on destructive commands.
	ForceFlag = &cli.BoolFlag{
		Name:  "force",
		Usage: "Skip confirmation prompts",
	}
)

// Global returns the flags shared by every subcommand.
func Global() []cli.Flag {
	return []cli.Flag{
		VaultAddrFlag,
		VaultTokenFlag,
		VaultMountFlag,
		SignerURLFlag,
		SignerKeysDirFlag,
		VerbosityFlag,
		ConfigFileFlag,
	}
}
