package data

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// StartupsStore performs startup DB operations.
type StartupsStore struct {
	coll *mongo.Collection
}

// NewStartupsStore returns a StartupsStore using the provided collection.
func NewStartupsStore(coll *mongo.Collection) *StartupsStore {
	return &StartupsStore{coll: coll}
}

// CreateStartup inserts a startup and returns it with its id set.
func (s *StartupsStore) CreateStartup(ctx context.Context, st *Startup) (*Startup, error) {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	for i := range st.JobOffers {
		if st.JobOffers[i].ID.IsZero() {
			st.JobOffers[i].ID = bson.NewObjectID()
		}
	}

	result, err := s.coll.InsertOne(ctx, st)
	if err != nil {
		return nil, errors.Wrap(err, "insert startup")
	}
	st.ID = result.InsertedID.(bson.ObjectID)
	return st, nil
}

// GetStartupByID returns the full startup document, logo included.
func (s *StartupsStore) GetStartupByID(ctx context.Context, id bson.ObjectID) (*Startup, error) {
	var st Startup
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&st)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "startup %s", id.Hex())
		}
		return nil, errors.Wrap(err, "find startup")
	}
	return &st, nil
}

// ListStartupRequirements returns every startup with only its id and job offer skill
// requirements populated, ordered by id. Logos and descriptions are not loaded.
func (s *StartupsStore) ListStartupRequirements(ctx context.Context) ([]*Startup, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "jobOffers.requiredSkills": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find startups")
	}
	defer cursor.Close(ctx)

	var startups []*Startup
	if err := cursor.All(ctx, &startups); err != nil {
		return nil, errors.Wrap(err, "decode startups")
	}
	return startups, nil
}
