// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string form:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt b64>$<key b64>
//
// bcrypt hashes ($2a$, $2b$, $2y$) are still verified so that imported
// accounts keep working; NeedsUpgrade reports them for rehashing.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const algorithmID = "argon2id"

var (
	ErrInvalidHash         = errors.New("invalid password hash")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Hasher is what the auth service needs from a password hashing scheme.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(encoded, plain string) (bool, error)
	NeedsUpgrade(encoded string) bool
}

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follow the OWASP argon2id baseline.
var DefaultParams = Params{
	Memory:      19 * 1024,
	Time:        2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2 implements Hasher.
type Argon2 struct {
	params Params
	rand   io.Reader
}

func NewArgon2(p Params) (*Argon2, error) {
	if p.Memory < 8*1024 || p.Time < 1 || p.Parallelism < 1 || p.SaltLength < 16 || p.KeyLength < 16 {
		return nil, fmt.Errorf("argon2 params too weak: %+v", p)
	}
	return &Argon2{params: p, rand: rand.Reader}, nil
}

// Hash returns a fresh salted hash of plain. A failure here means the
// random source is broken and must not be treated as a mismatch.
func (a *Argon2) Hash(plain string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches encoded. An error means encoded is
// not a hash this package understands.
func (a *Argon2) Verify(encoded, plain string) (bool, error) {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
		}
	}

	p, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

// NeedsUpgrade is true for legacy bcrypt hashes and for argon2 hashes
// produced with weaker parameters than the current ones.
func (a *Argon2) NeedsUpgrade(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	p, _, key, err := decode(encoded)
	if err != nil {
		return false
	}
	return p.Memory < a.params.Memory ||
		p.Time < a.params.Time ||
		p.Parallelism < a.params.Parallelism ||
		uint32(len(key)) != a.params.KeyLength
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, ErrInvalidHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
