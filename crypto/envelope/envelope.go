// Package envelope encrypts individual secret fields with a single
// long-lived data key, itself persisted once in the secret store. Every
// secret field of a key record passes through this package before it is
// written and after it is read; nothing else in the repository persists
// raw secret bytes.
package envelope

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/stakeops/keysmith/vault"
)

// DataKeyPath is the reserved store path holding the data key.
const DataKeyPath = "encryption-key"

const dataKeyField = "key"

// ErrDecryption is returned for any undecryptable input: wrong key,
// truncated data, tampering or malformed encoding. The causes are
// deliberately not distinguished.
var ErrDecryption = errors.New("envelope: decryption failed")

// Envelope holds the process-lifetime AEAD built from the data key.
type Envelope struct {
	aead cipher.AEAD
}

// Open reads the data key from its reserved path, generating and
// persisting a fresh one on first use. Concurrent first users converge
// on a single key: the write is check-and-set against an empty path,
// and the loser re-reads the winner's key.
func Open(ctx context.Context, kv vault.KV) (*Envelope, error) {
	data, _, err := kv.Get(ctx, DataKeyPath)
	if errors.Is(err, vault.ErrNotFound) {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.Wrap(err, "could not generate data key")
		}
		encoded := base64.StdEncoding.EncodeToString(key)
		if _, err := kv.PutCAS(ctx, DataKeyPath, map[string]interface{}{dataKeyField: encoded}, 0); err != nil {
			if !errors.Is(err, vault.ErrCheckAndSet) {
				return nil, errors.Wrap(err, "could not persist data key")
			}
			// Another process won the bootstrap race; use its key.
			data, _, err = kv.Get(ctx, DataKeyPath)
			if err != nil {
				return nil, errors.Wrap(err, "could not re-read data key after bootstrap race")
			}
			return fromStored(data)
		}
		return newEnvelope(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read data key")
	}
	return fromStored(data)
}

func fromStored(data map[string]interface{}) (*Envelope, error) {
	encoded, ok := data[dataKeyField].(string)
	if !ok {
		return nil, errors.New("envelope: stored data key has no key field")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode stored data key")
	}
	return newEnvelope(key)
}

func newEnvelope(key []byte) (*Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "could not build cipher from data key")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "could not build GCM from data key")
	}
	return &Envelope{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (e *Envelope) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "could not generate nonce")
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. All failure modes return ErrDecryption.
func (e *Envelope) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecryption
	}
	if len(raw) < e.aead.NonceSize() {
		return nil, ErrDecryption
	}
	nonce, sealed := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}
