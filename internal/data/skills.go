package data

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SkillsStore performs skill DB operations.
type SkillsStore struct {
	coll *mongo.Collection
}

// NewSkillsStore returns a SkillsStore using the provided collection.
func NewSkillsStore(coll *mongo.Collection) *SkillsStore {
	return &SkillsStore{coll: coll}
}

// UpsertSkills makes sure every skill exists (matched by Value) and returns their ids in
// input order. Skills with an empty value are rejected.
func (s *SkillsStore) UpsertSkills(ctx context.Context, skills []Skill) ([]bson.ObjectID, error) {
	ids := make([]bson.ObjectID, 0, len(skills))

	// $setOnInsert keeps the label of the first writer; the unique index on value
	// guarantees a single document per value even with concurrent upserts.
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	for _, sk := range skills {
		if sk.Value == "" {
			return nil, errors.New("skill value is required")
		}
		var saved Skill
		err := s.coll.FindOneAndUpdate(ctx,
			bson.M{"value": sk.Value},
			bson.M{"$setOnInsert": bson.M{"label": sk.Label, "value": sk.Value}},
			opts,
		).Decode(&saved)
		if err != nil {
			return nil, errors.Wrapf(err, "upsert skill %q", sk.Value)
		}
		ids = append(ids, saved.ID)
	}
	return ids, nil
}

// GetSkillsByIDs returns the skills with the given ids. Fails with ErrNotFound when any
// id is unknown.
func (s *SkillsStore) GetSkillsByIDs(ctx context.Context, ids []bson.ObjectID) ([]*Skill, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "find skills")
	}
	defer cursor.Close(ctx)

	var found []*Skill
	if err := cursor.All(ctx, &found); err != nil {
		return nil, errors.Wrap(err, "decode skills")
	}

	byID := make(map[bson.ObjectID]*Skill, len(found))
	for _, sk := range found {
		byID[sk.ID] = sk
	}
	out := make([]*Skill, 0, len(ids))
	for _, id := range ids {
		sk, ok := byID[id]
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "skill %s", id.Hex())
		}
		out = append(out, sk)
	}
	return out, nil
}

// ListSkills returns all skills sorted by label.
func (s *SkillsStore) ListSkills(ctx context.Context) ([]*Skill, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "label", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find skills")
	}
	defer cursor.Close(ctx)

	var skills []*Skill
	if err := cursor.All(ctx, &skills); err != nil {
		return nil, errors.Wrap(err, "decode skills")
	}
	return skills, nil
}
