package util

import "github.com/google/uuid"

// NewID returns a random identifier safe for URLs and object keys.
func NewID() string {
	return uuid.NewString()
}
