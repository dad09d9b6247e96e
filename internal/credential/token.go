package credential

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	tokenSeparator    = ":"
	tokenSuffixLength = 30
	alphanumeric      = lowercase + uppercase + digits

	DefaultSessionTTL = time.Hour
)

// Tokenizer mints session tokens of the form id:unix_seconds:random30 and
// checks their age against a fixed TTL.
type Tokenizer struct {
	ttl time.Duration
	now func() time.Time
}

type TokenizerOption func(*Tokenizer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TokenizerOption {
	return func(t *Tokenizer) { t.now = now }
}

func NewTokenizer(ttl time.Duration, opts ...TokenizerOption) *Tokenizer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	t := &Tokenizer{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tokenizer) TTL() time.Duration {
	return t.ttl
}

func (t *Tokenizer) GenerateSessionToken(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	if strings.Contains(id, tokenSeparator) {
		return "", fmt.Errorf("%w: session id contains %q", ErrInvalidInput, tokenSeparator)
	}

	suffix := make([]byte, tokenSuffixLength)
	for i := range suffix {
		c, err := pick(rand.Reader, alphanumeric)
		if err != nil {
			return "", err
		}
		suffix[i] = c
	}

	issued := strconv.FormatInt(t.now().Unix(), 10)
	return id + tokenSeparator + issued + tokenSeparator + string(suffix), nil
}

// ParseSessionToken splits a token into its id and issue time.
func ParseSessionToken(token string) (string, time.Time, error) {
	parts := strings.Split(token, tokenSeparator)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	secs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: timestamp: %w", ErrInvalidToken, err)
	}
	return parts[0], time.Unix(secs, 0), nil
}

// ValidateTokenExpiration reports whether the token is younger than the TTL.
func (t *Tokenizer) ValidateTokenExpiration(token string) (bool, error) {
	_, issued, err := ParseSessionToken(token)
	if err != nil {
		return false, err
	}
	return t.now().Sub(issued) < t.ttl, nil
}

// ExpiresAt returns when a token issued at issued stops being valid.
func (t *Tokenizer) ExpiresAt(issued time.Time) time.Time {
	return issued.Add(t.ttl)
}
