package userbot

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPhoneInvalid         = errors.New("userbot: invalid phone number")
	ErrCodeInvalid          = errors.New("userbot: invalid login code")
	ErrCodeExpired          = errors.New("userbot: login code expired")
	ErrPasswordInvalid      = errors.New("userbot: invalid 2FA password")
	ErrSecondFactorRequired = errors.New("userbot: 2FA password required")
	ErrSessionRevoked       = errors.New("userbot: session is no longer authorized")
)

// RateLimitError is the platform's throttling signal: the caller must wait
// at least Wait before retrying the call that produced it.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("userbot: rate limited, retry in %s", e.Wait)
}

// AsRateLimit unwraps err into a RateLimitError, if it carries one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
