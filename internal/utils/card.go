package utils

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ErrInvalidCard is returned for card numbers that are not 12-19 digits or
// fail the Luhn check.
var ErrInvalidCard = errors.New("invalid card number")

// SanitizedCard is all that may be kept of a card number.
type SanitizedCard struct {
	Mask        string
	Fingerprint string
}

// SanitizeCard reduces a PAN to a mask showing the last four digits and a
// keyed BLAKE2b-256 fingerprint, which lets the same card be recognized
// across payments without storing it.  Spaces and dashes are ignored.
func SanitizeCard(key []byte, pan string) (SanitizedCard, error) {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, pan)
	if len(digits) < 12 || len(digits) > 19 || !luhn(digits) {
		return SanitizedCard{}, ErrInvalidCard
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return SanitizedCard{}, err
	}
	h.Write([]byte(digits))
	return SanitizedCard{
		Mask:        MaskCard(digits),
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// MaskCard replaces every digit but the last four with '*'.
func MaskCard(digits string) string {
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
