// Package domain holds typed identifiers shared across features.
//
// Typed IDs prevent cross-entity assignment at compile time: a VisitID can
// never be passed where a HostID is expected. Parse functions enforce shape
// at trust boundaries (HTTP handlers, store scans).
package domain

import (
	"github.com/google/uuid"

	dErrors "gatepass/pkg/domain-errors"
)

type (
	// VisitID identifies one check-in/check-out lifecycle.
	VisitID uuid.UUID
	// HostID identifies a person who can receive visitors.
	HostID uuid.UUID
)

func (id VisitID) String() string { return uuid.UUID(id).String() }
func (id HostID) String() string  { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the nil UUID.
func (id VisitID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id HostID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }

// NewVisitID returns a fresh random visit ID.
func NewVisitID() VisitID { return VisitID(uuid.New()) }

// NewHostID returns a fresh random host ID.
func NewHostID() HostID { return HostID(uuid.New()) }

// MarshalText renders the ID in canonical UUID form so JSON payloads carry
// a string clients can echo back, not a byte array.
func (id VisitID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id HostID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

// UnmarshalText applies the same shape rules as the Parse functions, so an ID
// decoded from a payload is as trustworthy as one parsed at a handler.
func (id *VisitID) UnmarshalText(text []byte) error {
	u, err := parseUUID(string(text), "visit id")
	if err != nil {
		return err
	}
	*id = VisitID(u)
	return nil
}

func (id *HostID) UnmarshalText(text []byte) error {
	u, err := parseUUID(string(text), "host id")
	if err != nil {
		return err
	}
	*id = HostID(u)
	return nil
}

// ParseVisitID parses and validates a visit ID string.
func ParseVisitID(s string) (VisitID, error) {
	u, err := parseUUID(s, "visit id")
	return VisitID(u), err
}

// ParseHostID parses and validates a host ID string.
func ParseHostID(s string) (HostID, error) {
	u, err := parseUUID(s, "host id")
	return HostID(u), err
}

// parseUUID rejects empty strings, malformed UUIDs, and the nil UUID.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", what)
	}
	return u, nil
}
