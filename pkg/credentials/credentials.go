// Package credentials resolves and decrypts stored integration secrets.
// Credentials are fetched read-only per node invocation, never cached
// across nodes, so a rotated secret takes effect on the next node.
// Decrypted values are never logged.
package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fluxionhq/fluxion/pkg/flowerr"
)

// Store is the lookup collaborator: the engine only needs the encrypted
// payload for a (credential, user) pair.
type Store interface {
	Get(ctx context.Context, credentialID, userID string) (string, error)
}

// Decryptor turns the stored ciphertext into the credential's JSON fields.
type Decryptor interface {
	Decrypt(ciphertext string) (map[string]string, error)
}

// Resolver combines lookup and decryption.
type Resolver struct {
	store     Store
	decryptor Decryptor
}

func NewResolver(store Store, decryptor Decryptor) *Resolver {
	return &Resolver{store: store, decryptor: decryptor}
}

// Resolve fetches and decrypts a credential, then checks that every
// required field is present and non-empty. A malformed credential is a
// terminal configuration error raised before any network call.
func (r *Resolver) Resolve(ctx context.Context, credentialID, userID string, requiredFields ...string) (map[string]string, error) {
	if credentialID == "" {
		return nil, flowerr.Configuration("missing credential id")
	}

	ciphertext, err := r.store.Get(ctx, credentialID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credential %s: %w", credentialID, err)
	}

	fields, err := r.decryptor.Decrypt(ciphertext)
	if err != nil {
		return nil, flowerr.NonRetriable(fmt.Errorf("failed to decrypt credential %s: %w", credentialID, err))
	}

	for _, field := range requiredFields {
		if fields[field] == "" {
			return nil, flowerr.Configuration("credential %s is missing required field %q", credentialID, field)
		}
	}

	return fields, nil
}

// AESGCM decrypts base64(nonce || ciphertext) payloads sealed with
// AES-256-GCM, the format the credential CRUD layer writes.
type AESGCM struct {
	key []byte
}

func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	return &AESGCM{key: key}, nil
}

func (a *AESGCM) Decrypt(ciphertext string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("credential payload is not base64: %w", err)
	}

	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("credential payload too short")
	}

	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential payload: %w", err)
	}

	var fields map[string]string
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		return nil, fmt.Errorf("credential payload is not a JSON object: %w", err)
	}

	return fields, nil
}

// Encrypt seals the fields with a random nonce. Exists for tests and for
// the credential CRUD layer's write path.
func (a *AESGCM) Encrypt(fields map[string]string) (string, error) {
	plaintext, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(a.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}
