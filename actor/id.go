package actor

import (
	"github.com/google/uuid"
)

// ID is the globally unique 128-bit identifier assigned to an actor when its
// handle is created. The identity is preserved across restarts and across
// serialization to a remote node, so remote holders continue to reach the
// logical actor after a move. A stopped handle's identity is never reused.
type ID [16]byte

// NewID generates a fresh random actor identity.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical string form produced by String back into an
// ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}

	return ID(u), nil
}

// String returns the canonical textual form of the identity.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the identity is the zero value, which is never
// assigned to a live actor.
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalText implements encoding.TextMarshaler so identities survive JSON
// round trips on the wire unchanged.
func (id ID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}

	*id = ID(u)

	return nil
}
