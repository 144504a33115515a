package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// Classification describes what is actually present at a store path.
type Classification int

const (
	// ClassActive means a readable payload exists at the current version.
	ClassActive Classification = iota
	// ClassDeleted means the current version is soft-deleted; eligible
	// for destroy.
	ClassDeleted
	// ClassDestroyed means the data is permanently gone.
	ClassDestroyed
	// ClassError means the path could not be classified; transport or
	// parse failure.
	ClassError
)

func (c Classification) String() string {
	switch c {
	case ClassActive:
		return "active"
	case ClassDeleted:
		return "deleted"
	case ClassDestroyed:
		return "destroyed"
	default:
		return "error"
	}
}

type versionMetadata struct {
	DeletionTime string `json:"deletion_time"`
	Destroyed    bool   `json:"destroyed"`
}

// Classify inspects metadata first, then data, and reports the state of
// the path. It never returns an error; callers branch on the result.
// A path whose metadata is gone entirely classifies as Destroyed, since
// destroy is the only operation that removes metadata.
func (c *Client) Classify(ctx context.Context, path string) Classification {
	body, err := c.do(ctx, http.MethodGet, c.metadataURL(path), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return ClassDestroyed
		}
		return ClassError
	}
	var meta struct {
		Data struct {
			CurrentVersion int                        `json:"current_version"`
			Versions       map[string]versionMetadata `json:"versions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return ClassError
	}
	if meta.Data.CurrentVersion == 0 {
		return ClassDeleted
	}
	current, ok := meta.Data.Versions[strconv.Itoa(meta.Data.CurrentVersion)]
	if ok && current.DeletionTime != "" {
		if current.Destroyed {
			return ClassDestroyed
		}
		return ClassDeleted
	}
	if ok && current.Destroyed {
		return ClassDestroyed
	}

	_, _, err = c.Get(ctx, path)
	switch {
	case err == nil:
		return ClassActive
	case errors.Is(err, ErrNotFound):
		// Metadata says current version exists but the payload is null.
		return ClassDeleted
	default:
		return ClassError
	}
}
