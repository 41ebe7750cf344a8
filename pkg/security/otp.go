package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultOTPTTL = 10 * time.Minute
	otpSpace      = 1_000_000
)

// OTPIssuer makes six digit one-time codes together with their expiry.
// It stores nothing, callers persist the pair and deliver the code.
type OTPIssuer struct {
	TTL time.Duration
	Now func() time.Time
}

func NewOTPIssuer(ttl time.Duration) *OTPIssuer {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}

	return &OTPIssuer{TTL: ttl}
}

func (o *OTPIssuer) Issue() (code string, expiresAt time.Time, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpace))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate otp, %w", err)
	}

	ttl := o.TTL
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}

	return fmt.Sprintf("%06d", n.Int64()), o.now().Add(ttl), nil
}

func (o *OTPIssuer) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}

	return time.Now().UTC()
}
