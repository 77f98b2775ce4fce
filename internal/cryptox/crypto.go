// Package cryptox implements the symmetric cipher used for Maximum-security
// files: AES-256-GCM with a fresh random 96-bit nonce per encryption, JWK
// import/export for key interchange, and the derivation that binds the
// emailed 6-digit decryption code to the actual file key.
//
// The code is not the key. The key is argon2id(code, salt) with a random
// per-file salt, so the same code never yields the same key twice across
// files, and the server can keep only the salt plus a hash of the code.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fortifile/fortifile/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the AES key length in bytes (AES-256).
const KeySize = 32

// NonceSize is the GCM nonce length in bytes.
const NonceSize = 12

// jwk is the JSON Web Key form of a raw symmetric key, matching the
// "oct"/A256GCM interchange format.
type jwk struct {
	Kty string `json:"kty"`
	K   string `json:"k"`
	Alg string `json:"alg"`
	Ext bool   `json:"ext"`
}

// GenerateKey produces a fresh random 256-bit key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// ExportKey serializes a raw key to a JWK JSON string so it can be
// transported or re-imported later.
func ExportKey(key []byte) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrorKeyFormat, KeySize, len(key))
	}
	b, err := json.Marshal(jwk{
		Kty: "oct",
		K:   base64.RawURLEncoding.EncodeToString(key),
		Alg: "A256GCM",
		Ext: true,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ImportKey parses a JWK JSON string produced by ExportKey and returns the
// raw key. Malformed input yields common.ErrorKeyFormat.
func ImportKey(s string) ([]byte, error) {
	var k jwk
	if err := json.Unmarshal([]byte(s), &k); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorKeyFormat, err)
	}
	if k.Kty != "oct" {
		return nil, fmt.Errorf("%w: unsupported key type %q", common.ErrorKeyFormat, k.Kty)
	}
	key, err := base64.RawURLEncoding.DecodeString(k.K)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorKeyFormat, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrorKeyFormat, KeySize, len(key))
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM under key. A new random 12-byte
// nonce is generated for every call; reusing a nonce under the same key
// breaks GCM, so nonces are never accepted from the caller. The GCM tag is
// appended to the returned ciphertext.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = common.GenerateRandByteArray(NonceSize)
	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. Any mismatch of ciphertext,
// key, or nonce fails GCM authentication and yields
// common.ErrorDecryptionFailed; corrupted plaintext is never returned.
func Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrorDecryptionFailed
	}
	return plaintext, nil
}

// DeriveKeyFromCode maps a decryption code and a per-file salt to an AES-256
// key. Deterministic for the same inputs, so the recipient can reconstruct
// the key from the emailed code and the stored salt.
func DeriveKeyFromCode(code string, salt []byte) []byte {
	return argon2.IDKey([]byte(code), salt, 1, 64*1024, 4, KeySize)
}

// MakeCodeVerifier returns a hash of the code suitable for storage; the
// server keeps the verifier, never the code itself.
func MakeCodeVerifier(code string) []byte {
	hash := sha256.Sum256([]byte(code))
	return hash[:]
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorKeyFormat, err)
	}
	return cipher.NewGCM(block)
}
