package types

import (
	"fmt"

	"github.com/google/uuid"
)

// uuidFromBytes parses a 16-byte raw UUID, the on-disk form for both
// uuid and timeuuid values.
func uuidFromBytes(b []byte) (uuid.UUID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("types: malformed uuid bytes: %w", err)
	}
	return u, nil
}

// NewTimeUUID generates a new RFC 4122 version-1 (time-based) UUID, the
// variant Cassandra uses for its timeuuid type.
func NewTimeUUID() (uuid.UUID, error) {
	return uuid.NewUUID()
}

// NewUUID generates a new random (version 4) UUID.
func NewUUID() uuid.UUID {
	return uuid.New()
}
