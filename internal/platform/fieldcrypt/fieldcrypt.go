// Package fieldcrypt encrypts sensitive free-text fields at rest. Keys are
// derived per owner from a master secret, so no per-record key material is
// ever stored and one derived key does not expose another owner's data.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"

	dErrors "mindwell/pkg/domain-errors"
)

// placeholders are values that look configured but are not. A master secret
// matching any of these is treated the same as a missing one.
var placeholders = map[string]struct{}{
	"changeme":                             {},
	"change-me":                            {},
	"secret":                               {},
	"default":                              {},
	"dev-secret":                           {},
	"dev-secret-key-change-in-production":  {},
	"your-256-bit-secret":                  {},
	"your-encryption-key-32-chars-minimum": {},
}

// Cipher performs per-owner symmetric encryption under a single master secret.
type Cipher struct {
	masterSecret []byte
}

// New validates the master secret and returns a Cipher. There is no fallback:
// an empty or placeholder secret fails with MisconfiguredSecret.
func New(masterSecret string) (*Cipher, error) {
	if err := CheckSecret(masterSecret); err != nil {
		return nil, err
	}
	return &Cipher{masterSecret: []byte(masterSecret)}, nil
}

// CheckSecret rejects unconfigured or placeholder master secrets. Exposed so
// config validation can fail at process start rather than first use.
func CheckSecret(masterSecret string) error {
	if masterSecret == "" {
		return dErrors.New(dErrors.CodeMisconfiguredSecret, "encryption master secret is not configured")
	}
	if _, ok := placeholders[masterSecret]; ok {
		return dErrors.New(dErrors.CodeMisconfiguredSecret, "encryption master secret is a placeholder value")
	}
	return nil
}

// deriveKey computes the per-owner AES-256 key. One-way: compromise of a
// derived key does not reveal the master secret or sibling keys.
func (c *Cipher) deriveKey(ownerID string) []byte {
	h := sha256.New()
	h.Write(c.masterSecret)
	h.Write([]byte(":"))
	h.Write([]byte(ownerID))
	return h.Sum(nil)
}

// Encrypt seals plaintext under the owner's derived key with a fresh random
// nonce. Returns base64 ciphertext and the hex-encoded nonce.
func (c *Cipher) Encrypt(plaintext, ownerID string) (ciphertext, ivHex string, err error) {
	block, err := aes.NewCipher(c.deriveKey(ownerID))
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "cipher init failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "cipher init failed")
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "nonce generation failed")
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), hex.EncodeToString(iv), nil
}

// Decrypt reverses Encrypt. On any failure (wrong owner, corrupted data,
// malformed iv) it returns the empty string rather than an error, so callers
// cannot leak internal crypto state through their error paths.
func (c *Cipher) Decrypt(ciphertext, ivHex, ownerID string) string {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ""
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return ""
	}
	block, err := aes.NewCipher(c.deriveKey(ownerID))
	if err != nil {
		return ""
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return ""
	}
	if len(iv) != gcm.NonceSize() {
		return ""
	}
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return ""
	}
	return string(plaintext)
}
