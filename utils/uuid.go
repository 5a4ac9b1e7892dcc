package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateConnID returns an identifier for a realtime connection.
func GenerateConnID() string {
	return "conn-" + uuid.NewString()
}
