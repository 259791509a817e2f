package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ObjectIDLength is the hex length of a legacy Mongo ObjectID order key.
const ObjectIDLength = 24

// IsObjectID reports whether s looks like a 24 character hex ObjectID.
func IsObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != ObjectIDLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ObjectIDToUUID maps a legacy ObjectID onto the orders primary key by left
// padding it with zeros: "682c5990bf4a775c8de9598a" becomes
// "00000000-682c-5990-bf4a-775c8de9598a".
func ObjectIDToUUID(id string) (uuid.UUID, error) {
	id = strings.TrimSpace(id)
	if !IsObjectID(id) {
		return uuid.Nil, fmt.Errorf("invalid ObjectID %q", id)
	}
	var u uuid.UUID
	if _, err := hex.Decode(u[16-ObjectIDLength/2:], []byte(id)); err != nil {
		return uuid.Nil, fmt.Errorf("invalid ObjectID %q: %w", id, err)
	}
	return u, nil
}

// OrderUUID resolves a courier supplied order identifier to an orders.id
// value. It accepts canonical UUIDs and legacy ObjectIDs; anything else is a
// business order number and ok is false.
func OrderUUID(orderID string) (id uuid.UUID, ok bool) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return uuid.Nil, false
	}
	if IsObjectID(orderID) {
		u, err := ObjectIDToUUID(orderID)
		return u, err == nil
	}
	if u, err := uuid.Parse(orderID); err == nil {
		return u, true
	}
	return uuid.Nil, false
}
