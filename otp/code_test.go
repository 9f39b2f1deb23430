package otp

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for _, digits := range []int{4, 6, 8} {
		for i := 0; i < 50; i++ {
			code, err := GenerateCode(digits)
			require.NoError(t, err)
			require.Len(t, code, digits)
			for _, r := range code {
				require.True(t, r >= '0' && r <= '9', "unexpected rune %q in %s", r, code)
			}
		}
	}
}

func TestCodeHasher(t *testing.T) {
	h := NewCodeHasher([]byte("secret"))

	assert.Equal(t, h.Hash("b1", "123456"), h.Hash("b1", "123456"))
	assert.NotEqual(t, h.Hash("b1", "123456"), h.Hash("b2", "123456"))
	assert.Len(t, h.Hash("b1", "123456"), 64)

	other := NewCodeHasher([]byte("other secret"))
	assert.NotEqual(t, h.Hash("b1", "123456"), other.Hash("b1", "123456"))

	// an unkeyed digest of public data must not match what is stored
	plain := sha256.Sum256([]byte("b1:123456"))
	assert.NotEqual(t, hex.EncodeToString(plain[:]), h.Hash("b1", "123456"))

	assert.Panics(t, func() { NewCodeHasher(nil) })
}
