package reconciler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/stakeops/keysmith/vault"
)

// CleanupReport summarizes an orphan sweep.
type CleanupReport struct {
	Scanned   int
	Destroyed int
}

// CleanupOrphans scans every canonical record, classifies its store
// path, and destroys entries that are corrupted beyond recovery:
// classification Error, or a readable path whose payload no longer
// parses as a record. Soft-deleted entries are left for the operator;
// legacy-shaped names belong to the migration tool and are skipped.
func (s *Service) CleanupOrphans(ctx context.Context) (*CleanupReport, error) {
	names, err := s.cfg.KV.List(ctx, keymanager.RecordPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "could not list record namespace")
	}
	report := &CleanupReport{}
	for _, name := range names {
		if keymanager.IsLegacyName(name) {
			continue
		}
		report.Scanned++
		path := keymanager.CanonicalPath(name)
		switch class := s.cfg.KV.Classify(ctx, path); class {
		case vault.ClassError:
			log.WithField("record", abbrev(name)).Warn("Destroying unclassifiable record")
			if err := s.cfg.KV.Destroy(ctx, path); err != nil {
				return report, errors.Wrapf(err, "could not destroy %s", name)
			}
			report.Destroyed++
		case vault.ClassActive:
			if _, err := s.cfg.Store.Get(ctx, name); errors.Is(err, keymanager.ErrCorruptRecord) {
				log.WithField("record", abbrev(name)).Warn("Destroying corrupt record")
				if err := s.cfg.KV.Destroy(ctx, path); err != nil {
					return report, errors.Wrapf(err, "could not destroy %s", name)
				}
				report.Destroyed++
			}
		}
	}
	return report, nil
}
