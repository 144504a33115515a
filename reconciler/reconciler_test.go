package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/crypto/envelope"
	"github.com/stakeops/keysmith/keymanager"
	"github.com/stakeops/keysmith/vault/mock"
	"github.com/stakeops/keysmith/web3signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

// fakeSigner is an httptest-backed web3signer that reports whatever
// keys its configuration directory currently names.
type fakeSigner struct {
	srv     *httptest.Server
	keysDir string

	mu      sync.Mutex
	reloads int
	up      bool
	loaded  []string
}

func newFakeSigner(t *testing.T, keysDir string) *fakeSigner {
	t.Helper()
	f := &fakeSigner{keysDir: keysDir, up: true}
	mux := http.NewServeMux()
	mux.HandleFunc("/upcheck", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.up {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/reload", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.reloads++
		f.loaded = f.scanKeys()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/eth2/publicKeys", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		require.NoError(t, json.NewEncoder(w).Encode(f.loaded))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// scanKeys mimics the signer's startup scan: every recognized config
// file yields one loaded key, derived from the file name.
func (f *fakeSigner) scanKeys() []string {
	entries, err := os.ReadDir(f.keysDir)
	if err != nil {
		return nil
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if !IsConfigFileName(name) {
			continue
		}
		key := name[len("vault-signing-key-") : len(name)-len(".yaml")]
		keys = append(keys, key)
	}
	return keys
}

func (f *fakeSigner) reloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

func setupService(t *testing.T) (*Service, *keymanager.Store, *mock.KV, *fakeSigner, string) {
	t.Helper()
	ctx := context.Background()
	kv := mock.New()
	env, err := envelope.Open(ctx, kv)
	require.NoError(t, err)
	store := keymanager.NewStore(kv, env)

	keysDir := filepath.Join(t.TempDir(), "keys")
	fake := newFakeSigner(t, keysDir)
	signerClient, err := web3signer.NewClient(fake.srv.URL)
	require.NoError(t, err)

	svc, err := New(Config{
		Store:      store,
		KV:         kv,
		Signer:     signerClient,
		KeysDir:    keysDir,
		VaultHost:  "vault.internal",
		VaultPort:  8200,
		VaultMount: "secret",
		VaultToken: "test-token",
	})
	require.NoError(t, err)
	return svc, store, kv, fake, keysDir
}

func putActive(t *testing.T, store *keymanager.Store, pubkey string) {
	t.Helper()
	ctx := context.Background()
	rec := &keymanager.KeyRecord{
		Pubkey:     pubkey,
		SigningKey: fmt.Sprintf("%064x", len(pubkey)),
		BatchID:    "batch-test",
	}
	require.NoError(t, store.Put(ctx, rec))
	require.NoError(t, store.MarkActive(ctx, pubkey, "", ""))
}

func TestSyncActive_ConvergesAndVerifies(t *testing.T) {
	ctx := context.Background()
	svc, store, kv, fake, keysDir := setupService(t)

	putActive(t, store, "0xaaaa")
	putActive(t, store, "0xbbbb")

	report, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ActiveRecords)
	assert.Equal(t, 0, report.FailedRecords)
	assert.Equal(t, 2, report.SecretsWritten)
	assert.Equal(t, 2, report.FilesWritten)
	assert.Equal(t, 0, report.FilesDeleted)
	assert.True(t, report.Reloaded)
	assert.True(t, report.Verified)
	assert.Equal(t, 1, fake.reloadCount())

	// Signer secret is written raw under the signer namespace.
	secret, _, err := kv.Get(ctx, SignerSecretPrefix+"/0xaaaa")
	require.NoError(t, err)
	rec, err := store.Get(ctx, "0xaaaa")
	require.NoError(t, err)
	assert.Equal(t, rec.SigningKey, secret[SignerSecretField])

	// Config file carries the store coordinates, not the secret.
	raw, err := os.ReadFile(filepath.Join(keysDir, ConfigFileName("0xaaaa")))
	require.NoError(t, err)
	entry := &ConfigEntry{}
	require.NoError(t, yaml.Unmarshal(raw, entry))
	assert.Equal(t, "hashicorp", entry.Type)
	assert.Equal(t, "BLS", entry.KeyType)
	assert.Equal(t, "/v1/secret/data/web3signer-keys/0xaaaa", entry.KeyPath)
	assert.Equal(t, SignerSecretField, entry.KeyName)
	assert.Equal(t, "vault.internal", entry.ServerHost)
	assert.Equal(t, "8200", entry.ServerPort)
	assert.NotContains(t, string(raw), rec.SigningKey)
}

func TestSyncActive_SecondRunIsFixedPoint(t *testing.T) {
	ctx := context.Background()
	svc, store, kv, fake, _ := setupService(t)

	putActive(t, store, "0xaaaa")
	_, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	puts := kv.PutCalls
	reloads := fake.reloadCount()

	report, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.SecretsWritten)
	assert.Equal(t, 0, report.FilesWritten)
	assert.Equal(t, 0, report.FilesDeleted)
	assert.False(t, report.Reloaded)
	assert.True(t, report.Verified)
	assert.Equal(t, puts, kv.PutCalls, "second run must not write to the store")
	assert.Equal(t, reloads, fake.reloadCount(), "second run must not reload the signer")
}

func TestSyncActive_RemovesStaleConfigFiles(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _, keysDir := setupService(t)

	putActive(t, store, "0xaaaa")
	putActive(t, store, "0xbbbb")
	_, err := svc.SyncActive(ctx)
	require.NoError(t, err)

	// Retiring a record makes its config file stale.
	require.NoError(t, store.MarkRetired(ctx, "0xbbbb", ""))
	report, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ActiveRecords)
	assert.Equal(t, 1, report.FilesDeleted)
	assert.True(t, report.Reloaded)
	assert.True(t, report.Verified)

	_, err = os.Stat(filepath.Join(keysDir, ConfigFileName("0xbbbb")))
	assert.True(t, os.IsNotExist(err))
}

func TestSyncActive_LeavesForeignFilesAlone(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _, keysDir := setupService(t)

	putActive(t, store, "0xaaaa")
	require.NoError(t, os.MkdirAll(keysDir, 0o700))
	foreign := filepath.Join(keysDir, "operator-notes.yaml")
	require.NoError(t, os.WriteFile(foreign, []byte("keep me"), 0o600))

	_, err := svc.SyncActive(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(foreign)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestSyncActive_GatesOnConnectivity(t *testing.T) {
	ctx := context.Background()

	t.Run("store down", func(t *testing.T) {
		svc, _, kv, _, _ := setupService(t)
		kv.HealthErr = errors.New("sealed")
		_, err := svc.SyncActive(ctx)
		require.Error(t, err)
	})

	t.Run("signer down", func(t *testing.T) {
		svc, _, _, fake, _ := setupService(t)
		fake.mu.Lock()
		fake.up = false
		fake.mu.Unlock()
		_, err := svc.SyncActive(ctx)
		require.Error(t, err)
	})
}

func TestSyncActive_SkipsCorruptRecord(t *testing.T) {
	ctx := context.Background()
	svc, store, kv, _, _ := setupService(t)

	putActive(t, store, "0xaaaa")
	putActive(t, store, "0xbbbb")
	kv.Corrupt(keymanager.CanonicalPath("0xbbbb"), map[string]interface{}{"status": "active"})

	report, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ActiveRecords, "corrupt record never lists as active")
	assert.Equal(t, 0, report.FailedRecords)
	assert.Equal(t, 1, report.SecretsWritten)
}

func TestSyncActive_FailedRecordKeepsItsConfigFile(t *testing.T) {
	ctx := context.Background()
	svc, store, kv, fake, keysDir := setupService(t)

	putActive(t, store, "0xaaaa")
	putActive(t, store, "0xbbbb")
	_, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	reloads := fake.reloadCount()

	// A transient store failure on one record's signer secret must not
	// delete that still-active record's config file or unload its key.
	kv.Break(SignerSecretPrefix + "/0xbbbb")
	report, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ActiveRecords)
	assert.Equal(t, 1, report.FailedRecords)
	assert.Equal(t, 0, report.FilesDeleted)
	assert.Equal(t, 0, report.FilesWritten)
	assert.False(t, report.Reloaded)
	assert.Equal(t, reloads, fake.reloadCount())

	_, err = os.Stat(filepath.Join(keysDir, ConfigFileName("0xbbbb")))
	require.NoError(t, err, "config file of the failed active record must survive")

	// Once the store recovers, the next pass converges without churn.
	kv.Heal(SignerSecretPrefix + "/0xbbbb")
	report, err = svc.SyncActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.FailedRecords)
	assert.Equal(t, 0, report.FilesDeleted)
	assert.True(t, report.Verified)
}

func TestSyncActive_ReportsSignerMismatch(t *testing.T) {
	ctx := context.Background()
	svc, store, _, fake, _ := setupService(t)

	putActive(t, store, "0xaaaa")

	// Break the fake's reload scan so its loaded set stays empty even
	// after the config files are written.
	fake.mu.Lock()
	fake.keysDir = "/nonexistent"
	fake.mu.Unlock()

	report, err := svc.SyncActive(ctx)
	require.NoError(t, err)
	assert.True(t, report.Reloaded)
	assert.False(t, report.Verified)
	assert.Equal(t, []string{"0xaaaa"}, report.MissingFromSigner)
}

func TestConfigFileNames(t *testing.T) {
	name := ConfigFileName("0xaaaa")
	assert.Equal(t, "vault-signing-key-0xaaaa.yaml", name)
	assert.True(t, IsConfigFileName(name))
	assert.False(t, IsConfigFileName("operator-notes.yaml"))
	assert.False(t, IsConfigFileName("vault-signing-key-0xaaaa.json"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	kv := mock.New()
	env, err := envelope.Open(context.Background(), kv)
	require.NoError(t, err)
	store := keymanager.NewStore(kv, env)
	signerClient, err := web3signer.NewClient("http://localhost:9000")
	require.NoError(t, err)

	_, err = New(Config{Store: store, KV: kv, Signer: signerClient})
	require.Error(t, err, "keys dir is required")

	svc, err := New(Config{Store: store, KV: kv, Signer: signerClient, KeysDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "secret", svc.cfg.VaultMount)
	assert.Equal(t, 10000, svc.cfg.TimeoutMillis)
}
