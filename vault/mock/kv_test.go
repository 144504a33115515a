package mock

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests pin the mock to the live client's semantics; higher
// layers rely on the two being interchangeable.

func TestKV_Versioning(t *testing.T) {
	ctx := context.Background()
	kv := New()

	version, err := kv.Put(ctx, "a/b", map[string]interface{}{"v": "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	version, err = kv.Put(ctx, "a/b", map[string]interface{}{"v": "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	data, version, err := kv.Get(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, "2", data["v"])
	assert.Equal(t, 2, version)
}

func TestKV_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	kv := New()
	_, err := kv.Put(ctx, "a", map[string]interface{}{"v": "1"})
	require.NoError(t, err)

	data, _, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	data["v"] = "mutated"

	fresh, _, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", fresh["v"])
}

func TestKV_PutCAS(t *testing.T) {
	ctx := context.Background()
	kv := New()

	_, err := kv.PutCAS(ctx, "a", map[string]interface{}{"v": "1"}, 1)
	require.True(t, errors.Is(err, vault.ErrCheckAndSet))

	version, err := kv.PutCAS(ctx, "a", map[string]interface{}{"v": "1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	_, err = kv.PutCAS(ctx, "a", map[string]interface{}{"v": "2"}, 0)
	require.True(t, errors.Is(err, vault.ErrCheckAndSet))

	version, err = kv.PutCAS(ctx, "a", map[string]interface{}{"v": "2"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestKV_List(t *testing.T) {
	ctx := context.Background()
	kv := New()
	for _, path := range []string{"keys/a", "keys/b", "keys/sub/c", "other/x"} {
		_, err := kv.Put(ctx, path, map[string]interface{}{"v": "1"})
		require.NoError(t, err)
	}

	names, err := kv.List(ctx, "keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "sub/"}, names)

	names, err = kv.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestKV_SoftDeleteAndClassify(t *testing.T) {
	ctx := context.Background()
	kv := New()

	assert.Equal(t, vault.ClassDestroyed, kv.Classify(ctx, "never"))

	version, err := kv.Put(ctx, "a", map[string]interface{}{"v": "1"})
	require.NoError(t, err)
	assert.Equal(t, vault.ClassActive, kv.Classify(ctx, "a"))

	require.NoError(t, kv.SoftDelete(ctx, "a", version))
	assert.Equal(t, vault.ClassDeleted, kv.Classify(ctx, "a"))
	_, _, err = kv.Get(ctx, "a")
	require.True(t, errors.Is(err, vault.ErrNotFound))

	require.NoError(t, kv.Destroy(ctx, "a"))
	assert.Equal(t, vault.ClassDestroyed, kv.Classify(ctx, "a"))
}

func TestKV_SoftDeleteMissingVersion(t *testing.T) {
	ctx := context.Background()
	kv := New()
	_, err := kv.Put(ctx, "a", map[string]interface{}{"v": "1"})
	require.NoError(t, err)
	require.Error(t, kv.SoftDelete(ctx, "a", 5))
	require.Error(t, kv.SoftDelete(ctx, "missing", 1))
}

func TestKV_TestHooks(t *testing.T) {
	ctx := context.Background()
	kv := New()
	_, err := kv.Put(ctx, "a", map[string]interface{}{"v": "1"})
	require.NoError(t, err)

	kv.Corrupt("a", map[string]interface{}{"broken": true})
	data, _, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, true, data["broken"])

	kv.FailClassify("a")
	assert.Equal(t, vault.ClassError, kv.Classify(ctx, "a"))
}

func TestKV_BreakAndHeal(t *testing.T) {
	ctx := context.Background()
	kv := New()
	_, err := kv.Put(ctx, "a", map[string]interface{}{"v": "1"})
	require.NoError(t, err)

	kv.Break("a")
	_, _, err = kv.Get(ctx, "a")
	require.True(t, errors.Is(err, vault.ErrTransport))
	_, err = kv.Put(ctx, "a", map[string]interface{}{"v": "2"})
	require.True(t, errors.Is(err, vault.ErrTransport))

	// Other paths are unaffected.
	_, err = kv.Put(ctx, "b", map[string]interface{}{"v": "1"})
	require.NoError(t, err)

	kv.Heal("a")
	data, _, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", data["v"])
}
