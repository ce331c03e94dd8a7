package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	verrors "github.com/illarion/dirvault/internal/errors"
)

const (
	SaltSize = 16 // Raw salt size in bytes
	HashSize = 32 // Length of the verifier stored in the hash string

	minSaltSize = 8
	minHashSize = 4
	algorithm   = "argon2id"
)

// Params are the Argon2id cost parameters.
type Params struct {
	Memory  uint32 `toml:"memory_kib"` // KiB
	Time    uint32 `toml:"time"`
	Threads uint8  `toml:"threads"`
}

// DefaultParams are the Argon2id defaults (19 MiB, 2 passes, 1 lane).
var DefaultParams = Params{Memory: 19 * 1024, Time: 2, Threads: 1}

func (p Params) validate() error {
	if p.Time < 1 {
		return fmt.Errorf("argon2 time cost must be at least 1")
	}
	if p.Threads < 1 {
		return fmt.Errorf("argon2 parallelism must be at least 1")
	}
	if p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("argon2 memory must be at least %d KiB", 8*uint32(p.Threads))
	}
	return nil
}

// Credential binds a vault to its password. It is minted once per vault.
type Credential struct {
	PasswordHash string `json:"passwordHash"`
	Salt         string `json:"salt"`
}

// HashAndSalt generates a fresh salt and hashes password with it.
func HashAndSalt(password []byte, p Params) (Credential, error) {
	if err := p.validate(); err != nil {
		return Credential{}, err
	}

	raw, err := GenerateRandom(SaltSize)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := base64.RawStdEncoding.EncodeToString(raw)

	sum := argon2.IDKey(password, raw, p.Time, p.Memory, p.Threads, HashSize)
	defer ClearBytes(sum)

	hash := fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version, p.Memory, p.Time, p.Threads,
		salt, base64.RawStdEncoding.EncodeToString(sum))

	return Credential{PasswordHash: hash, Salt: salt}, nil
}

// phcHash is a parsed Argon2id PHC string.
type phcHash struct {
	params Params
	salt   []byte
	sum    []byte
}

func parseHash(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: password hash has %d fields", verrors.ErrFormat, len(parts))
	}
	if parts[1] != algorithm {
		return nil, fmt.Errorf("%w: unsupported hash algorithm %q", verrors.ErrFormat, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: bad version field %q", verrors.ErrFormat, parts[2])
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version %d", verrors.ErrFormat, version)
	}

	var h phcHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return nil, fmt.Errorf("%w: bad parameter field %q", verrors.ErrFormat, parts[3])
	}
	if err := h.params.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", verrors.ErrFormat, err)
	}

	var err error
	if h.salt, err = decodeSalt(parts[4]); err != nil {
		return nil, err
	}
	if h.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.sum) < minHashSize {
		return nil, fmt.Errorf("%w: bad hash field", verrors.ErrFormat)
	}

	return &h, nil
}

func decodeSalt(s string) ([]byte, error) {
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: salt is not base64: %v", verrors.ErrFormat, err)
	}
	if len(raw) < minSaltSize {
		return nil, fmt.Errorf("%w: salt of %d bytes is too short", verrors.ErrFormat, len(raw))
	}
	return raw, nil
}

// ParseParams returns the Argon2id parameters embedded in a hash string.
func ParseParams(hash string) (Params, error) {
	h, err := parseHash(hash)
	if err != nil {
		return Params{}, err
	}
	return h.params, nil
}

// Verify recomputes the hash of password with the parameters embedded in
// hash and compares in constant time.
func Verify(hash string, password []byte) (bool, error) {
	h, err := parseHash(hash)
	if err != nil {
		return false, err
	}

	sum := argon2.IDKey(password, h.salt, h.params.Time, h.params.Memory, h.params.Threads, uint32(len(h.sum)))
	defer ClearBytes(sum)

	return ConstantTimeCompare(sum, h.sum), nil
}

// DeriveKey runs Argon2id in raw mode over password and salt. A different salt
// silently yields a different key; that only surfaces as ErrCrypto on decrypt.
func DeriveKey(password []byte, salt string, p Params, outLen uint32) ([]byte, error) {
	if _, err := decodeSalt(salt); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", verrors.ErrFormat, err)
	}
	if outLen == 0 {
		return nil, fmt.Errorf("key length must be positive")
	}
	return argon2.IDKey(password, []byte(salt), p.Time, p.Memory, p.Threads, outLen), nil
}

// Verify checks password against the credential.
func (c Credential) Verify(password []byte) (bool, error) {
	return Verify(c.PasswordHash, password)
}

// DeriveKey derives a KeySize key using the parameters the credential was minted with.
func (c Credential) DeriveKey(password []byte) ([]byte, error) {
	p, err := ParseParams(c.PasswordHash)
	if err != nil {
		return nil, err
	}
	return DeriveKey(password, c.Salt, p, KeySize)
}

// Validate checks that both fields are well formed.
func (c Credential) Validate() error {
	if _, err := parseHash(c.PasswordHash); err != nil {
		return err
	}
	_, err := decodeSalt(c.Salt)
	return err
}
