package flags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

func TestWrap_ConfigFileValuesReachFlags(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "vault-addr: http://from-config:1234\nvault-mount: credentials\ncount: 7\nforce: true\n"
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))

	appFlags := Wrap([]cli.Flag{
		VaultAddrFlag,
		VaultMountFlag,
		CountFlag,
		ForceFlag,
		ConfigFileFlag,
	})

	var gotAddr, gotMount string
	var gotCount int
	var gotForce bool
	app := &cli.App{
		Flags: appFlags,
		Before: func(ctx *cli.Context) error {
			if ctx.IsSet(ConfigFileFlag.Name) {
				return altsrc.InitInputSourceWithContext(
					appFlags,
					altsrc.NewYamlSourceFromFlagFunc(ConfigFileFlag.Name))(ctx)
			}
			return nil
		},
		Action: func(ctx *cli.Context) error {
			gotAddr = ctx.String(VaultAddrFlag.Name)
			gotMount = ctx.String(VaultMountFlag.Name)
			gotCount = ctx.Int(CountFlag.Name)
			gotForce = ctx.Bool(ForceFlag.Name)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"keysmith", "--config-file", configPath}))
	assert.Equal(t, "http://from-config:1234", gotAddr)
	assert.Equal(t, "credentials", gotMount)
	assert.Equal(t, 7, gotCount)
	assert.True(t, gotForce)
}

func TestWrap_CommandLineOverridesConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("vault-addr: http://from-config:1234\n"), 0o600))

	appFlags := Wrap([]cli.Flag{VaultAddrFlag, ConfigFileFlag})
	var gotAddr string
	app := &cli.App{
		Flags: appFlags,
		Before: func(ctx *cli.Context) error {
			if ctx.IsSet(ConfigFileFlag.Name) {
				return altsrc.InitInputSourceWithContext(
					appFlags,
					altsrc.NewYamlSourceFromFlagFunc(ConfigFileFlag.Name))(ctx)
			}
			return nil
		},
		Action: func(ctx *cli.Context) error {
			gotAddr = ctx.String(VaultAddrFlag.Name)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{
		"keysmith", "--config-file", configPath, "--vault-addr", "http://from-cli:8200",
	}))
	assert.Equal(t, "http://from-cli:8200", gotAddr)
}

func TestWrap_NoConfigFileKeepsDefaults(t *testing.T) {
	appFlags := Wrap([]cli.Flag{VaultAddrFlag, ConfigFileFlag})
	var gotAddr string
	app := &cli.App{
		Flags: appFlags,
		Action: func(ctx *cli.Context) error {
			gotAddr = ctx.String(VaultAddrFlag.Name)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"keysmith"}))
	assert.Equal(t, "http://localhost:8200", gotAddr)
}
