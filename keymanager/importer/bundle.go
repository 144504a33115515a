// Package importer moves credential bundles between local keystore
// files, the record store, and the file layout the remote signer's
// tooling expects.
package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stakeops/keysmith/io/file"
)

var log = logrus.WithField("prefix", "importer")

// Keystore is the EIP-2335 keystore JSON shape.
type Keystore struct {
	Crypto  map[string]interface{} `json:"crypto"`
	ID      string                 `json:"uuid"`
	Pubkey  string                 `json:"pubkey"`
	Version uint                   `json:"version"`
	Path    string                 `json:"path"`
}

// IndexEntry is one row of a bundle's public-key index file, mapping a
// keystore index to its public keys.
type IndexEntry struct {
	Index            int    `json:"index"`
	ValidatorPubkey  string `json:"validator_pubkey"`
	WithdrawalPubkey string `json:"withdrawal_pubkey"`
	Mnemonic         string `json:"mnemonic,omitempty"`
}

const indexFileName = "pubkeys.json"

// readIndex locates and parses the bundle's index file.
func readIndex(bundleDir string) ([]IndexEntry, error) {
	path := filepath.Join(bundleDir, indexFileName)
	exists, err := file.FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Errorf("bundle has no %s index file", indexFileName)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read index file")
	}
	var entries []IndexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "could not parse index file")
	}
	return entries, nil
}

// keystorePath resolves the keystore file for an index, checking the
// bundle root and the keystores/ subdirectory.
func keystorePath(bundleDir string, index int) (string, error) {
	name := fmt.Sprintf("keystore-%04d.json", index)
	return findIn(bundleDir, name, ".", "keystores")
}

// passwordPath resolves the password file for an index, checking the
// bundle root and the secrets/ subdirectory.
func passwordPath(bundleDir string, index int) (string, error) {
	name := fmt.Sprintf("password-%04d.txt", index)
	return findIn(bundleDir, name, ".", "secrets", "keystores")
}

func findIn(bundleDir, name string, subdirs ...string) (string, error) {
	for _, sub := range subdirs {
		candidate := filepath.Join(bundleDir, sub, name)
		exists, err := file.FileExists(candidate)
		if err != nil {
			return "", err
		}
		if exists {
			return candidate, nil
		}
	}
	return "", errors.Errorf("%s not found in bundle", name)
}
