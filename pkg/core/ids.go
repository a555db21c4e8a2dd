package core

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a new UUID string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateName returns prefix followed by the first block of a fresh UUID,
// e.g. "stream-1b4e28ba".
func GenerateName(prefix string) string {
	id := uuid.New().String()
	if i := strings.IndexByte(id, '-'); i > 0 {
		id = id[:i]
	}
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
