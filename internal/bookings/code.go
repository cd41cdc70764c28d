package bookings

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	confirmationCodePrefix = "BK-"
	confirmationCodeLength = 10
	// no 0/O or 1/I so codes survive being read over the phone
	confirmationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var confirmationCodePattern = regexp.MustCompile(`^BK-[A-HJ-NP-Z2-9]{10}$`)

// NewConfirmationCode generates an opaque, unguessable booking reference
func NewConfirmationCode() (string, error) {
	code := make([]byte, confirmationCodeLength)
	max := big.NewInt(int64(len(confirmationAlphabet)))
	for i := range code {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = confirmationAlphabet[num.Int64()]
	}
	return confirmationCodePrefix + string(code), nil
}

// IsConfirmationCode reports whether code has the shape of a generated code
func IsConfirmationCode(code string) bool {
	return confirmationCodePattern.MatchString(code)
}
