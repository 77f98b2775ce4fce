package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := GenerateKey()
	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xAB}, 1<<16),
	}

	for _, p := range payloads {
		ciphertext, nonce, err := Encrypt(p, key)
		require.NoError(t, err)
		require.Len(t, nonce, NonceSize)

		got, err := Decrypt(ciphertext, key, nonce)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := GenerateKey()
	_, n1, err := Encrypt([]byte("x"), key)
	require.NoError(t, err)
	_, n2, err := Encrypt([]byte("x"), key)
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key := GenerateKey()
	ciphertext, nonce, err := Encrypt([]byte("sensitive payload"), key)
	require.NoError(t, err)

	// flip one bit in every byte position of the ciphertext
	for i := range ciphertext {
		tampered := append([]byte(nil), ciphertext...)
		tampered[i] ^= 0x01
		_, err := Decrypt(tampered, key, nonce)
		assert.ErrorIs(t, err, common.ErrorDecryptionFailed, "byte %d", i)
	}

	// flipped nonce
	badNonce := append([]byte(nil), nonce...)
	badNonce[0] ^= 0x01
	_, err = Decrypt(ciphertext, key, badNonce)
	assert.ErrorIs(t, err, common.ErrorDecryptionFailed)

	// wrong key
	_, err = Decrypt(ciphertext, GenerateKey(), nonce)
	assert.ErrorIs(t, err, common.ErrorDecryptionFailed)
}

func TestExportImportKey_RoundTrip(t *testing.T) {
	key := GenerateKey()

	s, err := ExportKey(key)
	require.NoError(t, err)

	imported, err := ImportKey(s)
	require.NoError(t, err)
	require.Equal(t, key, imported)

	// imported key must behave identically for encrypt/decrypt
	ciphertext, nonce, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)
	got, err := Decrypt(ciphertext, imported, nonce)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestImportKey_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "not-a-key"},
		{"wrong kty", `{"kty":"RSA","k":"AAAA","alg":"A256GCM"}`},
		{"bad base64", `{"kty":"oct","k":"???","alg":"A256GCM"}`},
		{"short key", `{"kty":"oct","k":"AAAA","alg":"A256GCM"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportKey(tt.in)
			assert.True(t, errors.Is(err, common.ErrorKeyFormat), "got %v", err)
		})
	}
}

func TestExportKey_WrongSize(t *testing.T) {
	_, err := ExportKey([]byte("short"))
	assert.ErrorIs(t, err, common.ErrorKeyFormat)
}

func TestDeriveKeyFromCode_Deterministic(t *testing.T) {
	salt := []byte("fixed-salt-16byt")

	k1 := DeriveKeyFromCode("123456", salt)
	k2 := DeriveKeyFromCode("123456", salt)
	require.Equal(t, k1, k2)
	require.Len(t, k1, KeySize)

	// different code or salt gives a different key
	assert.NotEqual(t, k1, DeriveKeyFromCode("123457", salt))
	assert.NotEqual(t, k1, DeriveKeyFromCode("123456", []byte("another-salt-16b")))
}

func TestDeriveKeyFromCode_EndToEnd(t *testing.T) {
	salt := common.GenerateRandByteArray(16)
	key := DeriveKeyFromCode("042517", salt)

	ciphertext, nonce, err := Encrypt([]byte("maximum security"), key)
	require.NoError(t, err)

	// right code decrypts
	got, err := Decrypt(ciphertext, DeriveKeyFromCode("042517", salt), nonce)
	require.NoError(t, err)
	assert.Equal(t, []byte("maximum security"), got)

	// wrong code fails authentication
	_, err = Decrypt(ciphertext, DeriveKeyFromCode("000000", salt), nonce)
	assert.ErrorIs(t, err, common.ErrorDecryptionFailed)
}

func TestMakeCodeVerifier(t *testing.T) {
	v1 := MakeCodeVerifier("123456")
	v2 := MakeCodeVerifier("123456")
	require.Equal(t, v1, v2)
	require.Len(t, v1, 32)
	assert.NotEqual(t, v1, MakeCodeVerifier("654321"))
}
