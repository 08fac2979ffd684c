// Package otpx generates time-based one-time passwords and decodes
// user-supplied secrets. Code generation delegates to github.com/pquerna/otp
// so output matches the RFC 4226/6238 reference algorithm bit for bit.
package otpx

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/mlukins/keyfob/internal/common"
)

// Algorithm selects the HMAC hash family for code generation.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmSHA512 Algorithm = "SHA512"
)

// Defaults used when an entry does not specify its own parameters.
const (
	DefaultDigits = 6
	DefaultStep   = 30
	DefaultSkew   = 1
)

const DefaultAlgorithm = AlgorithmSHA1

func (a Algorithm) lib() (otp.Algorithm, error) {
	switch a {
	case AlgorithmSHA1:
		return otp.AlgorithmSHA1, nil
	case AlgorithmSHA256:
		return otp.AlgorithmSHA256, nil
	case AlgorithmSHA512:
		return otp.AlgorithmSHA512, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", string(a))
	}
}

// Valid reports whether a names a supported hash family.
func (a Algorithm) Valid() bool {
	_, err := a.lib()
	return err == nil
}

// Generate computes the code for secret at time t. counter = ⌊unix/step⌋.
// Pure and deterministic: identical inputs always yield the identical code.
func Generate(secret []byte, alg Algorithm, digits, step uint, t time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("empty secret: %w", common.ErrSecretDecode)
	}
	libAlg, err := alg.lib()
	if err != nil {
		return "", err
	}
	if digits == 0 || step == 0 {
		return "", fmt.Errorf("digits and step must be positive")
	}

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret)
	return totp.GenerateCodeCustom(encoded, t, totp.ValidateOpts{
		Period:    step,
		Digits:    otp.Digits(digits),
		Algorithm: libAlg,
	})
}

// Remaining returns the seconds left in the current step window at time t.
// Always in [1, step]; equals step immediately after a boundary.
func Remaining(t time.Time, step uint) uint {
	return step - uint(t.Unix()%int64(step))
}

// Fraction returns how much of the current step window has elapsed at time
// t, in [0, 1). Drives the countdown indicator only.
func Fraction(t time.Time, step uint) float64 {
	window := time.Duration(step) * time.Second
	elapsed := time.Duration(t.UnixNano()) % window
	return float64(elapsed) / float64(window)
}

// DecodeSecret converts a user-supplied base32 string into raw key bytes.
// Whitespace and dashes are ignored and lowercase input is accepted.
// A decoded length of exactly 10 bytes is right-padded with 6 zero bytes to
// reach 16; some vendors export 80-bit secrets that their own apps pad this
// way, and codes only match theirs with the same padding. No other length
// is touched.
func DecodeSecret(s string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		}
		return r
	}, s))
	cleaned = strings.TrimRight(cleaned, "=")

	if cleaned == "" {
		return nil, fmt.Errorf("empty secret: %w", common.ErrSecretDecode)
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSecretDecode, err)
	}

	if len(raw) == 10 {
		raw = append(raw, make([]byte, 6)...)
	}
	return raw, nil
}

// FormatCode renders a code for display: six-digit codes get a space after
// the third digit ("123 456"), everything else is returned as-is. An empty
// code renders as "..." while the first generation is pending.
func FormatCode(code string) string {
	if code == "" {
		return "..."
	}
	if len(code) == 6 {
		return code[:3] + " " + code[3:]
	}
	return code
}
