// Package auth covers credentials: argon2id password hashes, bearer
// token issuance and the OIDC login flow.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonMemory     = 64 * 1024
	argonIterations = 3
	argonThreads    = 1
	argonSaltLen    = 16
	argonKeyLen     = 32
)

// HashPassword derives an argon2id digest and encodes it as a PHC
// string. The parameters travel inside the string, so they can be
// raised later without invalidating hashes already in the database.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory,
		argonIterations,
		argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// VerifyPassword reports whether password matches the PHC-encoded
// hash. Malformed hashes verify as false.
func VerifyPassword(phc, password string) bool {
	m, t, p, salt, sum, err := parsePHC(phc)
	if err != nil {
		return false
	}
	probe := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(sum)))
	return subtle.ConstantTimeCompare(probe, sum) == 1
}

func parsePHC(phc string) (m, t uint32, p uint8, salt, sum []byte, err error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, errors.New("invalid argon2id hash format")
	}
	if parts[2] != "v=19" {
		return 0, 0, 0, nil, nil, fmt.Errorf("unsupported argon2id version: %s", parts[2])
	}
	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return 0, 0, 0, nil, nil, errors.New("invalid argon2id params")
	}
	for _, param := range params {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 {
			return 0, 0, 0, nil, nil, errors.New("invalid argon2id params")
		}
		switch kv[0] {
		case "m":
			val, perr := strconv.ParseUint(kv[1], 10, 32)
			if perr != nil {
				return 0, 0, 0, nil, nil, errors.New("invalid argon2id memory")
			}
			m = uint32(val)
		case "t":
			val, perr := strconv.ParseUint(kv[1], 10, 32)
			if perr != nil {
				return 0, 0, 0, nil, nil, errors.New("invalid argon2id iterations")
			}
			t = uint32(val)
		case "p":
			val, perr := strconv.ParseUint(kv[1], 10, 8)
			if perr != nil {
				return 0, 0, 0, nil, nil, errors.New("invalid argon2id parallelism")
			}
			p = uint8(val)
		default:
			return 0, 0, 0, nil, nil, errors.New("invalid argon2id params")
		}
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, errors.New("invalid argon2id salt")
	}
	sum, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, errors.New("invalid argon2id hash")
	}
	return m, t, p, salt, sum, nil
}
