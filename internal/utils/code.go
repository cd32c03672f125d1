package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateConfirmationCode returns a random alphanumeric code of the given length.
func GenerateConfirmationCode(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("confirmation code length must be positive")
	}

	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
