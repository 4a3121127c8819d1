// Package cryptox produces and verifies password digests.
//
// Digests are self-describing strings, so records written under
// different schemes can live in the same user store:
//
//	argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>   salted, memory-hard (default)
//	$2a$10$...                                    bcrypt
//	<64 hex chars>                                unsalted SHA-256 (legacy)
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/urbanquest/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Scheme names accepted by NewHasher and configuration.
const (
	SchemeArgon2id = "argon2id"
	SchemeBcrypt   = "bcrypt"
	SchemeSHA256   = "sha256"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Bounds on parameters read back from stored argon2id digests. Values
// outside them are treated as malformed rather than derived.
const (
	argonMaxTime   = 16
	argonMaxMemory = 1 << 20 // KiB
	argonMinSalt   = 8
	argonMaxSalt   = 64
	argonMinKey    = 16
	argonMaxKey    = 64
)

var ErrUnknownScheme = errors.New("unknown digest scheme")

var b64 = base64.RawStdEncoding

// Hasher turns a password into an encoded digest.
type Hasher interface {
	Scheme() string
	Hash(password string) (string, error)
}

// NewHasher returns the Hasher for scheme.
func NewHasher(scheme string) (Hasher, error) {
	switch scheme {
	case SchemeArgon2id:
		return argon2Hasher{}, nil
	case SchemeBcrypt:
		return bcryptHasher{cost: bcrypt.DefaultCost}, nil
	case SchemeSHA256:
		return sha256Hasher{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

type argon2Hasher struct{}

func (argon2Hasher) Scheme() string { return SchemeArgon2id }

func (argon2Hasher) Hash(password string) (string, error) {
	salt := common.GenerateRandByteArray(argonSaltLen)
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

type bcryptHasher struct {
	cost int
}

func (bcryptHasher) Scheme() string { return SchemeBcrypt }

func (h bcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type sha256Hasher struct{}

func (sha256Hasher) Scheme() string { return SchemeSHA256 }

func (sha256Hasher) Hash(password string) (string, error) {
	return legacyDigest(password), nil
}

func legacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// SchemeOf reports which scheme produced encoded, or "" if the format
// is not recognised.
func SchemeOf(encoded string) string {
	switch {
	case strings.HasPrefix(encoded, "argon2id$"):
		return SchemeArgon2id
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return SchemeBcrypt
	case isLegacy(encoded):
		return SchemeSHA256
	}
	return ""
}

func isLegacy(encoded string) bool {
	if len(encoded) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(encoded)
	return err == nil
}

// Verify reports whether password matches encoded. Malformed digests
// never match.
func Verify(encoded, password string) bool {
	switch SchemeOf(encoded) {
	case SchemeArgon2id:
		return verifyArgon2(encoded, password)
	case SchemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	case SchemeSHA256:
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(encoded)), []byte(legacyDigest(password))) == 1
	}
	return false
}

// NeedsRehash reports whether encoded was not produced by scheme and
// should be replaced at the next successful login.
func NeedsRehash(encoded, scheme string) bool {
	return SchemeOf(encoded) != scheme
}

func verifyArgon2(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	if time < 1 || time > argonMaxTime || threads < 1 || memory < 8*uint32(threads) || memory > argonMaxMemory {
		return false
	}

	salt, err := b64.DecodeString(parts[3])
	if err != nil || len(salt) < argonMinSalt || len(salt) > argonMaxSalt {
		return false
	}
	key, err := b64.DecodeString(parts[4])
	if err != nil || len(key) < argonMinKey || len(key) > argonMaxKey {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1
}
