package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

func GenerateCode(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("could not generate code: %w", err)
	}

	code := n.Text(10)
	return strings.Repeat("0", digits-len(code)) + code, nil
}

// CodeHasher keys code hashes with a server secret. Without the key the stored hashes
// can't be brute forced over the small code space.
type CodeHasher struct {
	key []byte
}

func NewCodeHasher(key []byte) CodeHasher {
	if len(key) == 0 {
		panic("missing code hash key")
	}

	return CodeHasher{key: key}
}

// Hash binds the code to the booking, equal codes of different bookings hash differently.
func (h CodeHasher) Hash(bookingID, code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(bookingID + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}
