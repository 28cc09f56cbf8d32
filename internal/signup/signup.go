// Package signup implements the HOTP-style derivation behind the
// frontend's signup codes. Minting and distributing codes is the
// frontend's job; this package exists so the core can verify a
// presented code against a provider's secret.
package signup

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Provider mints/verifies codes under one HMAC secret, identified by one
// or more three-char prefixes.
type Provider struct {
	Name     string
	Secret   [32]byte
	Prefixes []string
}

var (
	// ErrInvalidFormat is returned for a code that is not 9 lowercase hex
	// characters.
	ErrInvalidFormat = errors.New("signup: malformed code")
	// ErrUnknownPrefix is returned when a code's 3-char prefix matches
	// none of the provider's configured prefixes.
	ErrUnknownPrefix = errors.New("signup: unknown provider prefix")
	// ErrCodeInvalid is returned when the HHHHHH suffix does not match
	// any minute in the accepted verification window.
	ErrCodeInvalid = errors.New("signup: code invalid or expired")
)

const (
	prefixLen     = 3
	suffixLen     = 6
	windowBack    = 2
	windowForward = 6
)

// Generate mints a 9-char code for prefix at time t (truncated to the
// minute), under provider's secret.
func (p *Provider) Generate(prefix string, t time.Time) (string, error) {
	if !hasPrefix(p.Prefixes, prefix) {
		return "", ErrUnknownPrefix
	}
	suffix := deriveSuffix(p.Secret[:], minuteCounter(t))
	return prefix + suffix, nil
}

// Verify checks code against provider's secret, accepting any minute
// offset in [-2, +6] relative to now.
func (p *Provider) Verify(code string, now time.Time) error {
	if len(code) != prefixLen+suffixLen {
		return ErrInvalidFormat
	}
	prefix, suffix := code[:prefixLen], code[prefixLen:]
	if !isLowerHex(suffix) {
		return ErrInvalidFormat
	}
	if !hasPrefix(p.Prefixes, prefix) {
		return ErrUnknownPrefix
	}

	// d is how many minutes after minting the code is being checked; the
	// window accepts checking up to 2 minutes before minting (clock skew)
	// through 6 minutes after.
	nowCounter := minuteCounter(now)
	for d := -windowBack; d <= windowForward; d++ {
		mintCounter := nowCounter - int64(d)
		if deriveSuffix(p.Secret[:], mintCounter) == suffix {
			return nil
		}
	}
	return ErrCodeInvalid
}

func minuteCounter(t time.Time) int64 {
	return t.UTC().Unix() / 60
}

// deriveSuffix implements the RFC-4226 dynamic-truncation HOTP derivation
// over the minute counter, producing the 6 lowercase hex digits.
func deriveSuffix(secret []byte, counter int64) string {
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], uint64(counter))

	mac := hmac.New(sha256.New, secret)
	mac.Write(counterBytes[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06x", truncated%0x1000000)
}

func hasPrefix(prefixes []string, prefix string) bool {
	for _, p := range prefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
