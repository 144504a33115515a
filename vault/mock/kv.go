// Package mock provides an in-memory KV v2 implementation with the same
// version, soft-delete and destroy semantics as the live client. It is
// used throughout the test suites of the packages that consume vault.KV.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/vault"
)

type version struct {
	data         map[string]interface{}
	deletionTime string
	destroyed    bool
}

type entry struct {
	versions []*version // index i holds version i+1
}

// KV is an in-memory vault.KV. The zero value is not usable; call New.
type KV struct {
	mu      sync.Mutex
	entries map[string]*entry
	failing map[string]bool
	broken  map[string]bool

	// Counters let tests assert on traffic, e.g. reconciliation
	// idempotence.
	PutCalls     int
	DestroyCalls int

	// HealthErr, when set, is returned from Health to simulate an
	// unreachable store.
	HealthErr error
}

var _ vault.KV = (*KV)(nil)

// New returns an empty in-memory KV.
func New() *KV {
	return &KV{
		entries: make(map[string]*entry),
		failing: make(map[string]bool),
		broken:  make(map[string]bool),
	}
}

func (m *KV) current(path string) (*version, int) {
	e, ok := m.entries[path]
	if !ok || len(e.versions) == 0 {
		return nil, 0
	}
	return e.versions[len(e.versions)-1], len(e.versions)
}

// Get returns the current version's payload.
func (m *KV) Get(_ context.Context, path string) (map[string]interface{}, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken[path] {
		return nil, 0, errors.Wrapf(vault.ErrTransport, "simulated failure at %s", path)
	}
	cur, ver := m.current(path)
	if cur == nil {
		return nil, 0, errors.Wrapf(vault.ErrNotFound, "no secret at %s", path)
	}
	if cur.deletionTime != "" || cur.destroyed || cur.data == nil {
		return nil, 0, errors.Wrapf(vault.ErrNotFound, "no readable data at %s", path)
	}
	out := make(map[string]interface{}, len(cur.data))
	for k, v := range cur.data {
		out[k] = v
	}
	return out, ver, nil
}

// Put appends a new version at path.
func (m *KV) Put(_ context.Context, path string, data map[string]interface{}) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(path, data)
}

// PutCAS appends a new version only when the current version equals cas.
func (m *KV) PutCAS(_ context.Context, path string, data map[string]interface{}, cas int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ver := m.current(path)
	if ver != cas {
		return 0, errors.Wrapf(vault.ErrCheckAndSet, "path %s at version %d, caller expected %d", path, ver, cas)
	}
	return m.write(path, data)
}

func (m *KV) write(path string, data map[string]interface{}) (int, error) {
	if m.broken[path] {
		return 0, errors.Wrapf(vault.ErrTransport, "simulated failure at %s", path)
	}
	m.PutCalls++
	copied := make(map[string]interface{}, len(data))
	for k, v := range data {
		copied[k] = v
	}
	e, ok := m.entries[path]
	if !ok {
		e = &entry{}
		m.entries[path] = e
	}
	e.versions = append(e.versions, &version{data: copied})
	return len(e.versions), nil
}

// List returns the sorted child names directly under prefix.
func (m *KV) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	seen := make(map[string]bool)
	for path := range m.entries {
		if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
			continue
		}
		rest := path[len(prefix):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == '/' {
				rest = rest[:i+1]
				break
			}
		}
		seen[rest] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SoftDelete marks the given version deleted, keeping metadata.
func (m *KV) SoftDelete(_ context.Context, path string, ver int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	if !ok || ver < 1 || ver > len(e.versions) {
		return errors.Wrapf(vault.ErrNotFound, "no version %d at %s", ver, path)
	}
	e.versions[ver-1].deletionTime = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Destroy removes all versions and metadata at path.
func (m *KV) Destroy(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DestroyCalls++
	delete(m.entries, path)
	return nil
}

// Classify mirrors the live client's decision tree.
func (m *KV) Classify(_ context.Context, path string) vault.Classification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing[path] {
		return vault.ClassError
	}
	if _, ok := m.entries[path]; !ok {
		return vault.ClassDestroyed
	}
	cur, _ := m.current(path)
	if cur == nil {
		return vault.ClassDeleted
	}
	if cur.deletionTime != "" {
		if cur.destroyed {
			return vault.ClassDestroyed
		}
		return vault.ClassDeleted
	}
	if cur.data == nil {
		return vault.ClassDeleted
	}
	return vault.ClassActive
}

// Health reports the configured health error, if any.
func (m *KV) Health(_ context.Context) error {
	return m.HealthErr
}

// Corrupt overwrites the current version's payload in place without
// bumping the version, simulating an undecodable record.
func (m *KV) Corrupt(path string, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, _ := m.current(path)
	if cur != nil {
		cur.data = data
	}
}

// Break marks path so reads and writes fail with a transport error,
// simulating a transient store failure scoped to one secret.
func (m *KV) Break(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken[path] = true
}

// Heal clears a Break.
func (m *KV) Heal(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.broken, path)
}

// FailClassify marks path so Classify returns ClassError.
func (m *KV) FailClassify(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[path] = true
}
