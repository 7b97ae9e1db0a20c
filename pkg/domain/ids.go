// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "meridian/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where OrderID is expected.
type (
	UserID  uuid.UUID
	OrderID uuid.UUID
	EventID uuid.UUID
)

// New functions - use when minting identifiers for freshly created records.

func NewUserID() UserID   { return UserID(uuid.New()) }
func NewOrderID() OrderID { return OrderID(uuid.New()) }
func NewEventID() EventID { return EventID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseOrderID(s string) (OrderID, error) {
	id, err := parseUUID(s, "order ID")
	return OrderID(id), err
}

func ParseEventID(s string) (EventID, error) {
	id, err := parseUUID(s, "event ID")
	return EventID(id), err
}

// String methods - for logging and serialization.

func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id OrderID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText/UnmarshalText make the IDs JSON-friendly as plain UUID strings.

func (id UserID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id OrderID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OrderID) UnmarshalText(b []byte) error {
	parsed, err := ParseOrderID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here. Use IsNil() at the service layer for business
// validation, which lets store lookups return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
