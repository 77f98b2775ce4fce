// Package cli implements the local encryption tool: files are sealed and
// opened on the user's machine with a key derived from a decryption code, so
// neither the key nor the plaintext ever has to reach a server.
package cli

import (
	"bytes"
	"fmt"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/cryptox"
)

// sealed file layout: magic | salt | nonce | ciphertext
var sealMagic = []byte("FFSEAL1\x00")

const sealSaltSize = 16

// Seal encrypts plaintext under a key derived from the code and a fresh
// random salt. The salt and nonce travel in the output header so Open needs
// only the code.
func Seal(plaintext []byte, code string) ([]byte, error) {
	salt := common.GenerateRandByteArray(sealSaltSize)
	key := cryptox.DeriveKeyFromCode(code, salt)
	defer common.WipeByteArray(key)

	ciphertext, nonce, err := cryptox.Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealMagic)+sealSaltSize+cryptox.NonceSize+len(ciphertext))
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Open decrypts a file produced by Seal. A wrong code fails GCM
// authentication and yields common.ErrorDecryptionFailed.
func Open(data []byte, code string) ([]byte, error) {
	header := len(sealMagic) + sealSaltSize + cryptox.NonceSize
	if len(data) < header || !bytes.HasPrefix(data, sealMagic) {
		return nil, fmt.Errorf("%w: not a sealed file", common.ErrorValidation)
	}

	salt := data[len(sealMagic) : len(sealMagic)+sealSaltSize]
	nonce := data[len(sealMagic)+sealSaltSize : header]

	key := cryptox.DeriveKeyFromCode(code, salt)
	defer common.WipeByteArray(key)

	return cryptox.Decrypt(data[header:], key, nonce)
}
