package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

func HashString(input string) string {
	return HashBytes([]byte(input))
}

func HashBytes(input []byte) string {
	hash := sha256.Sum256(input)
	return hex.EncodeToString(hash[:])
}

// HashNames hashes a name list independently of how it was rendered.
func HashNames(names []string) string {
	return HashString(strings.Join(names, "\n"))
}

func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}
