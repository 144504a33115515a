package reconciler

import (
	"fmt"
	"strings"
)

// SignerSecretPrefix is the store namespace holding the signer-visible
// copy of each active signing secret. It is distinct from the record
// namespace: the signer's backend reads a bare secret at a fixed field,
// not an encrypted record.
const SignerSecretPrefix = "web3signer-keys"

// SignerSecretField is the field name the signer's key configuration
// points at.
const SignerSecretField = "value"

const configFilePrefix = "vault-signing-key-"

// ConfigEntry is the file-based key configuration the signer consumes
// at startup/reload: one YAML file per key, pointing into the secret
// store rather than embedding the secret. Entries are derived,
// disposable artifacts regenerated on every reconciliation run.
type ConfigEntry struct {
	Type       string `yaml:"type"`
	KeyType    string `yaml:"keyType"`
	TLSEnabled string `yaml:"tlsEnabled"`
	KeyPath    string `yaml:"keyPath"`
	KeyName    string `yaml:"keyName"`
	ServerHost string `yaml:"serverHost"`
	ServerPort string `yaml:"serverPort"`
	Timeout    string `yaml:"timeout"`
	Token      string `yaml:"token"`
}

// ConfigFileName derives the deterministic file name for a public key.
func ConfigFileName(pubkey string) string {
	return fmt.Sprintf("%s%s.yaml", configFilePrefix, pubkey)
}

// IsConfigFileName reports whether name was generated by this package.
// Reconciliation only ever deletes files it recognizes as its own.
func IsConfigFileName(name string) bool {
	return strings.HasPrefix(name, configFilePrefix) && strings.HasSuffix(name, ".yaml")
}
