package data

import (
	"context" // Used for cancellation and timeouts
	"time"    // Timestamps

	"github.com/PaulBabatuyi/tumatch-chat/internal/normalize"
	"github.com/pkg/errors"

	"go.mongodb.org/mongo-driver/v2/bson"           // MongoDB document queries
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options" // Projections
)

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document. The password must already be hashed.
func (u *UsersStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	now := time.Now()
	user.Email = normalize.Email(user.Email) // stored lowercase so lookups are case-insensitive
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Skills == nil {
		user.Skills = []bson.ObjectID{} // keep the field an array, never null
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// unique index on email rejected the insert
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.Wrapf(ErrDuplicate, "user %s", user.Email)
		}
		return nil, errors.Wrap(err, "insert user")
	}

	// MongoDB generates the _id; copy it back so callers can mint a token for it
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "user %s", email)
		}
		return nil, errors.Wrap(err, "find user by email")
	}
	return &user, nil
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		// No document found (user was deleted)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "user %s", id.Hex())
		}
		return nil, errors.Wrap(err, "find user by id")
	}
	return &user, nil
}

// UserExists checks if a user exists by email.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	// CountDocuments is cheaper than decoding a full document when only existence matters
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, errors.Wrap(err, "count users")
	}
	return count > 0, nil
}

// UserExistsByID checks if a user exists by ObjectID.
func (u *UsersStore) UserExistsByID(ctx context.Context, id bson.ObjectID) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, errors.Wrap(err, "count users")
	}
	return count > 0, nil
}

// GetProfiles returns the display fields of the given users. Unknown ids are skipped.
func (u *UsersStore) GetProfiles(ctx context.Context, ids []bson.ObjectID) ([]*Profile, error) {
	// Only fetch what a chat list renders; never the password hash
	opts := options.Find().SetProjection(bson.M{"firstName": 1, "lastName": 1, "profession": 1})

	cursor, err := u.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find profiles")
	}
	defer cursor.Close(ctx)

	var profiles []*Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, errors.Wrap(err, "decode profiles")
	}
	return profiles, nil
}
