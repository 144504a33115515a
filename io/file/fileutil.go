// Package file contains filesystem helpers that enforce the restricted
// permissions secret material requires: 0700 directories, 0600 files.
package file

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// MkdirAll creates a directory (and parents) with 0700 permissions. An
// existing directory with wider permissions is rejected rather than
// silently reused.
func MkdirAll(dirPath string) error {
	exists, err := DirExists(dirPath)
	if err != nil {
		return err
	}
	if exists {
		info, err := os.Stat(dirPath)
		if err != nil {
			return err
		}
		if info.Mode().Perm() != 0700 {
			return errors.Errorf("dir already exists without proper 0700 permissions: %s", dirPath)
		}
		return nil
	}
	return os.MkdirAll(dirPath, 0700)
}

// WriteFile writes data with 0600 permissions, rejecting an existing
// file with wider permissions.
func WriteFile(filePath string, data []byte) error {
	exists, err := FileExists(filePath)
	if err != nil {
		return err
	}
	if exists {
		info, err := os.Stat(filePath)
		if err != nil {
			return err
		}
		if info.Mode() != 0600 {
			return errors.Errorf("file already exists without proper 0600 permissions: %s", filePath)
		}
	}
	return os.WriteFile(filePath, data, 0600)
}

// FileExists reports whether a regular file exists at filePath.
func FileExists(filePath string) (bool, error) {
	info, err := os.Stat(filepath.Clean(filePath))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// DirExists reports whether a directory exists at dirPath.
func DirExists(dirPath string) (bool, error) {
	info, err := os.Stat(filepath.Clean(dirPath))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
