package hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"resource-auth-service/internal/config"
)

var (
	ErrInvalidHash         = errors.New("invalid hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

const (
	algorithmID = "argon2id"
	saltLength  = 16
	keyLength   = 32
)

// Hasher hashes and verifies resource secrets (passwords, pincodes) with
// argon2id, and produces lookup digests for one-time codes.
type Hasher struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func NewHasher(cfg *config.Config) *Hasher {
	return &Hasher{
		memory:      uint32(cfg.Hashing.Argon2MemoryCost),
		time:        uint32(cfg.Hashing.Argon2TimeCost),
		parallelism: uint8(cfg.Hashing.Argon2Parallelism),
	}
}

// HashSecret returns a PHC-encoded argon2id hash of the secret.
func (h *Hasher) HashSecret(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.time, h.memory, h.parallelism, keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.memory,
		h.time,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifySecret re-derives the key with the parameters embedded in the stored
// hash and compares in constant time. The comparison cost does not depend on
// where the first mismatching byte occurs.
func (h *Hasher) VerifySecret(storedHash, secret string) (bool, error) {
	memory, timeCost, parallelism, salt, key, err := decodePHC(storedHash)
	if err != nil {
		return false, err
	}

	derived := argon2.IDKey([]byte(secret), salt, timeCost, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, derived) == 1, nil
}

// VerifyPincode is VerifySecret with the pincode shape enforced first:
// anything that is not exactly six digits fails before touching the hash.
func (h *Hasher) VerifyPincode(storedHash, pincode string) (bool, error) {
	if !ValidPincode(pincode) {
		return false, nil
	}
	return h.VerifySecret(storedHash, pincode)
}

// ValidPincode reports whether the input is exactly six ASCII digits.
func ValidPincode(pincode string) bool {
	if len(pincode) != 6 {
		return false
	}
	for i := 0; i < len(pincode); i++ {
		if pincode[i] < '0' || pincode[i] > '9' {
			return false
		}
	}
	return true
}

// DigestCode returns a hex SHA-256 digest of a one-time code. Codes are
// short-lived single-use secrets with high entropy, so a plain digest is
// used instead of argon2.
func DigestCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func decodePHC(encoded string) (memory, timeCost uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != algorithmID {
		err = ErrInvalidHash
		return
	}

	var version int
	if _, scanErr := fmt.Sscanf(parts[2], "v=%d", &version); scanErr != nil {
		err = ErrInvalidHash
		return
	}
	if version != argon2.Version {
		err = ErrIncompatibleVersion
		return
	}

	var p uint32
	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &p); scanErr != nil {
		err = ErrInvalidHash
		return
	}
	parallelism = uint8(p)

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		err = ErrInvalidHash
		return
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		err = ErrInvalidHash
		return
	}
	if len(salt) == 0 || len(key) == 0 {
		err = ErrInvalidHash
	}
	return
}
