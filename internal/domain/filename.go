package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FileName maps a session ID to a file name stem that cannot escape its
// directory. IDs that need rewriting get a short hash of the raw ID appended
// so distinct sessions never share a file.
func FileName(id string) string {
	var b strings.Builder
	if id == "" {
		b.WriteString("unknown")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == id {
		return name
	}
	sum := sha256.Sum256([]byte(id))
	return name + "-" + hex.EncodeToString(sum[:4])
}
