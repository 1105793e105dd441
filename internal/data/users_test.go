package data

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/PaulBabatuyi/tumatch-chat/internal/db"
	"github.com/PaulBabatuyi/tumatch-chat/internal/db/dbtest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMain(m *testing.M) {
	code := m.Run()
	dbtest.Terminate()
	os.Exit(code)
}

func setupDB(t *testing.T) *db.Client {
	uri := dbtest.URI(t)

	ctx := context.Background()
	c, err := db.New(ctx, uri, db.Options{Database: "tumatch_data_test"})
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	// ensure clean collections in case previous runs left data
	_ = c.Drop(ctx)
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestUsersCreateAndGet(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())

	ctx := context.Background()
	email := time.Now().UTC().Format("20060102-150405") + "-Integration@Example.com"

	user, err := users.CreateUser(ctx, &User{Email: email, Password: "hashed", FirstName: "Ada", Profession: ProfessionStudent})
	require.NoError(t, err)
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, strings.ToLower(email), user.Email)

	ok, err := users.UserExists(ctx, email)
	require.NoError(t, err)
	assert.True(t, ok, "lookup by original casing should match the normalized email")

	ok, err = users.UserExistsByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.NotNil(t, got.Skills)

	_, err = users.CreateUser(ctx, &User{Email: email, Password: "x"})
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	_, err = users.GetUserByID(ctx, bson.NewObjectID())
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	profiles, err := users.GetProfiles(ctx, []bson.ObjectID{user.ID, bson.NewObjectID()})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Ada", profiles[0].FirstName)
}

func TestSkillsUpsertDedupesByValue(t *testing.T) {
	c := setupDB(t)
	skills := NewSkillsStore(c.SkillsCollection())
	ctx := context.Background()

	first, err := skills.UpsertSkills(ctx, []Skill{{Label: "Python", Value: "python"}, {Label: "SQL", Value: "sql"}})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := skills.UpsertSkills(ctx, []Skill{{Label: "python (again)", Value: "python"}, {Label: "Python", Value: "Python"}})
	require.NoError(t, err)
	assert.Equal(t, first[0], second[0], "same value must resolve to the same skill")
	assert.NotEqual(t, first[0], second[1], "values are case-sensitive")

	got, err := skills.GetSkillsByIDs(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Python", got[0].Label, "label of the first writer is kept")

	all, err := skills.ListSkills(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = skills.UpsertSkills(ctx, []Skill{{Label: "empty"}})
	assert.Error(t, err)
}
