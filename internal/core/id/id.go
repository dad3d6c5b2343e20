// Package id provides identity helpers for documents stored in MongoDB.
// ObjectIDs embed a creation timestamp, so ascending _id order is stable and roughly chronological.
package id

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is the identity of products and outlet stock rows.
type ID = primitive.ObjectID

// New generates a new ObjectID.
func New() ID {
	return primitive.NewObjectID()
}

// Parse converts a hex string to ID.
func Parse(s string) (ID, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("parse id %q: %w", s, err)
	}
	return oid, nil
}

// MustParse converts a hex string to ID and panics on error.
// Use only in tests and constants.
func MustParse(s string) ID {
	oid, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// IsNil reports whether id is the zero ObjectID.
func IsNil(i ID) bool {
	return i.IsZero()
}

// Sort orders ids ascending in place.
func Sort(ids []ID) {
	sort.Slice(ids, func(a, b int) bool { return ids[a].Hex() < ids[b].Hex() })
}

// Unique returns ids without duplicates, preserving first-seen order.
func Unique(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, i := range ids {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}
