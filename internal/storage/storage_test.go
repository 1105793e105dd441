package storage

import (
	"context"
	"os"
	"testing"

	"github.com/PaulBabatuyi/tumatch-chat/internal/config"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	code := m.Run()
	dbtest.Terminate()
	os.Exit(code)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.Store{Driver: config.DriverMemory})
	require.NoError(t, err)
	defer s.Close(context.Background())

	u, err := s.Users.CreateUser(context.Background(), &data.User{Email: "Mem@Example.com"})
	require.NoError(t, err)
	got, err := s.Users.GetUserByEmail(context.Background(), "mem@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Store{Driver: "redis"})
	assert.Error(t, err)
}

func TestOpen_Mongo(t *testing.T) {
	uri := dbtest.URI(t)
	ctx := context.Background()

	s, err := Open(ctx, config.Store{Driver: config.DriverMongo, MongoURI: uri, Database: "tumatch_storage_test"})
	require.NoError(t, err)
	defer s.Close(ctx)

	ids, err := s.Skills.UpsertSkills(ctx, []data.Skill{{Label: "Go", Value: "go"}, {Label: "Go", Value: "go"}})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}
