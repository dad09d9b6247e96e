// Package credential mints and checks the secrets handed out during
// onboarding: login handles, temporary passwords, password digests and
// admin session tokens.
package credential

import "errors"

var (
	ErrInvalidInput  = errors.New("credential: invalid input")
	ErrInvalidDigest = errors.New("credential: unparsable password digest")
	ErrInvalidToken  = errors.New("credential: malformed session token")
)
