package common

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/oklog/ulid/v2"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateReference returns prefix followed by a ULID-derived suffix so the
// whole string is length characters long.
func GenerateReference(prefix string, length int) string {
	id := ulid.Make().String()
	n := length - len(prefix)
	if n <= 0 {
		return prefix
	}
	for len(id) < n {
		id += ulid.Make().String()
	}
	return prefix + id[len(id)-n:]
}

// GenerateCode returns an upper-case alphanumeric code without look-alike characters.
func GenerateCode(length int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String()
}
