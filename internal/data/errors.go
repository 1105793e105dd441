// Package data provides DB models and stores.
package data

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("document already exists")
	// ErrInvalidID is returned for identifiers that are not valid ObjectID hex strings.
	ErrInvalidID = errors.New("invalid id")
)

// ParseID converts a hex string into an ObjectID.
func ParseID(hex string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.NilObjectID, errors.Wrapf(ErrInvalidID, "%q", hex)
	}
	return id, nil
}

// ParseIDs converts every hex string, failing on the first invalid one.
func ParseIDs(hexes []string) ([]bson.ObjectID, error) {
	ids := make([]bson.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := ParseID(h)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
