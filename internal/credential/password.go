package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
	specials  = "!@#$%&*()_-+=,.:;?/|"

	PasswordLength = 9
)

// Character pools per position: one leading, seven body, one trailing.
const (
	LeadingChars  = lowercase + specials + digits
	BodyChars     = lowercase + uppercase + digits + specials
	TrailingChars = lowercase + uppercase + digits
)

// GenerateRandomPassword draws a temporary password from crypto/rand.
func GenerateRandomPassword() (string, error) {
	return generatePassword(rand.Reader)
}

func generatePassword(r io.Reader) (string, error) {
	out := make([]byte, 0, PasswordLength)

	pools := make([]string, 0, PasswordLength)
	pools = append(pools, LeadingChars)
	for i := 0; i < PasswordLength-2; i++ {
		pools = append(pools, BodyChars)
	}
	pools = append(pools, TrailingChars)

	for _, pool := range pools {
		c, err := pick(r, pool)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	return string(out), nil
}

func pick(r io.Reader, pool string) (byte, error) {
	n, err := rand.Int(r, big.NewInt(int64(len(pool))))
	if err != nil {
		return 0, fmt.Errorf("credential: read random: %w", err)
	}
	return pool[n.Int64()], nil
}

// Hasher produces bcrypt digests and verifies bcrypt and legacy PBKDF2
// PHC digests.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) HashPassword(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidInput)
		}
		return "", fmt.Errorf("credential: hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyHashedPassword reports whether plain reproduces digest. A digest
// that cannot be parsed yields false and ErrInvalidDigest.
func (h *Hasher) VerifyHashedPassword(plain, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$pbkdf2"):
		return verifyPBKDF2(plain, digest)
	case strings.HasPrefix(digest, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrInvalidDigest, err)
	}
	return false, ErrInvalidDigest
}

// IsDigest reports whether s looks like a digest this package can verify.
func IsDigest(s string) bool {
	return strings.HasPrefix(s, "$pbkdf2") || strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// verifyPBKDF2 checks a PHC string of the form
// $pbkdf2-sha256$i=<rounds>,l=<len>$<salt>$<hash> with unpadded base64.
func verifyPBKDF2(plain, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 || parts[0] != "" {
		return false, fmt.Errorf("%w: expected 4 PHC fields", ErrInvalidDigest)
	}

	var newHash func() hash.Hash
	switch parts[1] {
	case "pbkdf2-sha256":
		newHash = sha256.New
	case "pbkdf2-sha512":
		newHash = sha512.New
	default:
		return false, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidDigest, parts[1])
	}

	rounds, length := 0, 0
	for _, kv := range strings.Split(parts[2], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return false, fmt.Errorf("%w: bad parameter %q", ErrInvalidDigest, kv)
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return false, fmt.Errorf("%w: bad parameter %q", ErrInvalidDigest, kv)
		}
		switch k {
		case "i":
			rounds = n
		case "l":
			length = n
		}
	}
	if rounds == 0 {
		return false, fmt.Errorf("%w: missing rounds", ErrInvalidDigest)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %w", ErrInvalidDigest, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false, fmt.Errorf("%w: hash: %v", ErrInvalidDigest, err)
	}
	if length == 0 {
		length = len(want)
	}
	if length != len(want) {
		return false, fmt.Errorf("%w: length parameter does not match hash", ErrInvalidDigest)
	}

	got := pbkdf2.Key([]byte(plain), salt, rounds, length, newHash)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
