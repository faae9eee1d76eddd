// Package id provides utilities for generating random identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Hex returns n random upper case hexadecimal characters.
func Hex(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))[:n]
}
