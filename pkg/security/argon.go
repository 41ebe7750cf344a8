// Package security contains everything related to the security of user data
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("invalid hash format")

// ArgonHash holds the argon2id cost parameters new hashes are created with.
// Stored hashes carry their own parameters and verify regardless.
type ArgonHash struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func New() *ArgonHash {
	return &ArgonHash{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string
type phc struct {
	version     int
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.version, h.memory, h.iterations, h.parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

func parsePHC(encoded string) (*phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return nil, ErrInvalidHash
	}

	h := &phc{}
	if _, err := fmt.Sscanf(fields[2], "v=%d", &h.version); err != nil {
		return nil, fmt.Errorf("%w, %w", ErrInvalidHash, err)
	}

	if h.version != argon2.Version {
		return nil, fmt.Errorf("%w, unsupported argon2 version %d", ErrInvalidHash, h.version)
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.iterations, &h.parallelism); err != nil {
		return nil, fmt.Errorf("%w, %w", ErrInvalidHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("%w, bad salt: %w", ErrInvalidHash, err)
	}

	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, fmt.Errorf("%w, bad key: %w", ErrInvalidHash, err)
	}

	if len(h.key) == 0 {
		return nil, ErrInvalidHash
	}

	return h, nil
}

// GenerateFromPassword hashes p with argon2id and returns it encoded as a
// PHC string, salt included
func (a *ArgonHash) GenerateFromPassword(p string) (string, error) {
	salt := make([]byte, a.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to read salt, %w", err)
	}

	h := phc{
		version:     argon2.Version,
		memory:      a.Memory,
		iterations:  a.Iterations,
		parallelism: a.Parallelism,
		salt:        salt,
		key:         argon2.IDKey([]byte(p), salt, a.Iterations, a.Memory, a.Parallelism, a.KeyLength),
	}

	return h.String(), nil
}

// VerifyPasswd compares a password p with the stored PHC-style encoded hash e
func (a *ArgonHash) VerifyPasswd(p, e string) (bool, error) {
	h, err := parsePHC(e)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(p), h.salt, h.iterations, h.memory, h.parallelism, uint32(len(h.key)))

	return subtle.ConstantTimeCompare(h.key, key) == 1, nil
}

// NeedsRehash reports whether e was produced with parameters other than
// the current ones. Unparseable hashes always need a rehash.
func (a *ArgonHash) NeedsRehash(e string) bool {
	h, err := parsePHC(e)
	if err != nil {
		return true
	}

	return h.memory != a.Memory ||
		h.iterations != a.Iterations ||
		h.parallelism != a.Parallelism ||
		uint32(len(h.salt)) != a.SaltLength ||
		uint32(len(h.key)) != a.KeyLength
}
