package fieldcrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "mindwell/pkg/domain-errors"
)

func TestNew_RejectsMissingOrPlaceholderSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"changeme", "changeme"},
		{"dev default", "dev-secret-key-change-in-production"},
		{"bare secret", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.secret)
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeMisconfiguredSecret, dErrors.CodeOf(err))
		})
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	c, err := New("unit-test-master-secret")
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"ascii", "slept badly, anxious before the appointment"},
		{"unicode", "Ich fühle mich heute besser 🙂 — 気分がいい"},
		{"newlines", "line one\nline two\r\nline three"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, iv, err := c.Encrypt(tt.plaintext, "owner-1")
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, ciphertext)
			assert.NotEmpty(t, iv)
			assert.Equal(t, tt.plaintext, c.Decrypt(ciphertext, iv, "owner-1"))
		})
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	c, err := New("unit-test-master-secret")
	require.NoError(t, err)

	ct1, iv1, err := c.Encrypt("same input", "owner-1")
	require.NoError(t, err)
	ct2, iv2, err := c.Encrypt("same input", "owner-1")
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, ct1, ct2)
}

func TestDecrypt_WrongOwnerReturnsEmptySentinel(t *testing.T) {
	c, err := New("unit-test-master-secret")
	require.NoError(t, err)

	ciphertext, iv, err := c.Encrypt("private journal entry", "owner-1")
	require.NoError(t, err)

	assert.Empty(t, c.Decrypt(ciphertext, iv, "owner-2"))
}

func TestDecrypt_CorruptInputReturnsEmptySentinel(t *testing.T) {
	c, err := New("unit-test-master-secret")
	require.NoError(t, err)

	ciphertext, iv, err := c.Encrypt("private journal entry", "owner-1")
	require.NoError(t, err)

	assert.Empty(t, c.Decrypt("not-base64!!", iv, "owner-1"))
	assert.Empty(t, c.Decrypt(ciphertext, "zz-not-hex", "owner-1"))
	assert.Empty(t, c.Decrypt(ciphertext, "00", "owner-1"))
	assert.Empty(t, c.Decrypt(ciphertext[:len(ciphertext)-4]+"AAAA", iv, "owner-1"))
}

func TestDecrypt_DifferentMasterSecretReturnsEmptySentinel(t *testing.T) {
	c1, err := New("master-secret-one")
	require.NoError(t, err)
	c2, err := New("master-secret-two")
	require.NoError(t, err)

	ciphertext, iv, err := c1.Encrypt("private journal entry", "owner-1")
	require.NoError(t, err)

	assert.Empty(t, c2.Decrypt(ciphertext, iv, "owner-1"))
}
