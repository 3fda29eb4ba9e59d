package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// PayloadHash devuelve la huella SHA-256 (hex) de un cuerpo de mensaje.
func PayloadHash(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
