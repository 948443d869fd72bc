// README: Shared identifier type for persisted records.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random UUIDv4 identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID accepts only canonical UUIDs so malformed path params never reach a store.
func ParseID(s string) (ID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return ID(u.String()), true
}

func (id ID) String() string { return string(id) }
