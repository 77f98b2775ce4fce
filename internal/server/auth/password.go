package auth

import (
	"crypto/subtle"

	"github.com/fortifile/fortifile/internal/common"
	"golang.org/x/crypto/argon2"
)

const saltSize = 16

// HashPassword derives an argon2id hash for the password with a fresh random
// salt. Both parts are stored with the user record.
func HashPassword(password string) (salt, hash []byte) {
	salt = common.GenerateRandByteArray(saltSize)
	hash = hashWithSalt(password, salt)
	return salt, hash
}

// CheckPassword reports whether the candidate password matches the stored
// salt and hash. The comparison is constant-time with respect to the hash
// value.
func CheckPassword(password string, salt, hash []byte) bool {
	candidate := hashWithSalt(password, salt)
	return subtle.ConstantTimeCompare(candidate, hash) == 1
}

func hashWithSalt(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}
