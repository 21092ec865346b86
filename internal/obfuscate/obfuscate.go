// Package obfuscate reversibly encrypts path segments so the backend
// never receives plaintext file paths.
//
// Obfuscation is deterministic: the nonce for each segment is derived
// from the segment's plaintext with a keyed hash, so the same segment
// always produces the same ciphertext. That keeps obfuscated paths
// stable across sync cycles (the backend can correlate artifacts by
// path) at the cost of leaking equality of identical segments. Do not
// "fix" this by switching to random nonces: stable path identity is the
// point.
package obfuscate

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/codesync/internal/secrets"
)

// KeySecretName is the secret store key holding the obfuscation key.
const KeySecretName = "obfuscation_key"

const keySize = 32 // AES-256

// ErrInvalidCiphertext indicates a segment could not be decrypted.
var ErrInvalidCiphertext = errors.New("invalid obfuscated segment")

// Obfuscator encrypts and decrypts path segments with a per-install
// 256-bit key persisted in the secret store.
//
// Key initialization is lazy and single-flight: the first call blocks
// on key availability, and a key is never generated twice once one
// exists.
type Obfuscator struct {
	store secrets.Store

	mu       sync.Mutex
	aead     cipher.AEAD
	nonceKey []byte
}

// New creates an obfuscator backed by store. No key material is touched
// until the first Obfuscate or Reveal call.
func New(store secrets.Store) *Obfuscator {
	return &Obfuscator{store: store}
}

// Obfuscate encrypts each non-delimiter segment of path independently.
// Segments split on "/" and "."; delimiters are preserved verbatim so
// Reveal can re-segment unambiguously.
func (o *Obfuscator) Obfuscate(ctx context.Context, path string) (string, error) {
	if err := o.ensureKey(ctx); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, part := range splitRetainingDelimiters(path) {
		if part == "/" || part == "." || part == "" {
			b.WriteString(part)
			continue
		}
		b.WriteString(o.encryptSegment(part))
	}
	return b.String(), nil
}

// Reveal inverts Obfuscate exactly. It fails if the path was produced
// with a different key or tampered with.
func (o *Obfuscator) Reveal(ctx context.Context, path string) (string, error) {
	if err := o.ensureKey(ctx); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, part := range splitRetainingDelimiters(path) {
		if part == "/" || part == "." || part == "" {
			b.WriteString(part)
			continue
		}
		plain, err := o.decryptSegment(part)
		if err != nil {
			return "", err
		}
		b.WriteString(plain)
	}
	return b.String(), nil
}

// ensureKey loads or provisions the symmetric key.
func (o *Obfuscator) ensureKey(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.aead != nil {
		return nil
	}

	key, err := o.loadOrGenerateKey(ctx)
	if err != nil {
		return err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("initializing GCM: %w", err)
	}

	o.aead = aead
	o.nonceKey = key
	return nil
}

func (o *Obfuscator) loadOrGenerateKey(ctx context.Context) ([]byte, error) {
	encoded, err := o.store.Get(ctx, KeySecretName)
	switch {
	case err == nil:
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(key) != keySize {
			return nil, fmt.Errorf("stored obfuscation key is corrupt")
		}
		return key, nil
	case errors.Is(err, secrets.ErrNotFound):
		key := make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating obfuscation key: %w", err)
		}
		if err := o.store.Store(ctx, KeySecretName, base64.StdEncoding.EncodeToString(key)); err != nil {
			return nil, fmt.Errorf("persisting obfuscation key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("loading obfuscation key: %w", err)
	}
}

// encryptSegment seals one segment. The nonce is HMAC-SHA256 of the
// plaintext truncated to the GCM nonce length, prepended to the
// ciphertext so Reveal has it without knowing the plaintext.
func (o *Obfuscator) encryptSegment(segment string) string {
	nonce := o.deriveNonce(segment)
	sealed := o.aead.Seal(nil, nonce, []byte(segment), nil)
	return base64.RawURLEncoding.EncodeToString(append(nonce, sealed...))
}

func (o *Obfuscator) decryptSegment(segment string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) < o.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := raw[:o.aead.NonceSize()], raw[o.aead.NonceSize():]
	plain, err := o.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

func (o *Obfuscator) deriveNonce(segment string) []byte {
	mac := hmac.New(sha256.New, o.nonceKey)
	mac.Write([]byte(segment))
	return mac.Sum(nil)[:o.aead.NonceSize()]
}

// splitRetainingDelimiters splits on "/" and ".", emitting the
// delimiters as their own elements.
func splitRetainingDelimiters(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' || s[i] == '.' {
			parts = append(parts, s[start:i], string(s[i]))
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
