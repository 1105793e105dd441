package data

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestChatsLifecycle(t *testing.T) {
	c := setupDB(t)
	chats := NewChatsStore(c.ChatsCollection())
	ctx := context.Background()

	alice, bob, eve := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()

	chat, err := chats.CreateChat(ctx, []bson.ObjectID{alice, bob}, nil)
	require.NoError(t, err)
	assert.False(t, chat.ID.IsZero())
	assert.Empty(t, chat.Messages)

	for i := 0; i < 3; i++ {
		_, err := chats.AppendMessage(ctx, chat.ID, ChatMessage{Sender: alice, Message: fmt.Sprintf("m%d", i), Date: time.Now()})
		require.NoError(t, err)
	}

	// non-participant is rejected by the filter and leaves messages untouched
	_, err = chats.AppendMessage(ctx, chat.ID, ChatMessage{Sender: eve, Message: "intruder", Date: time.Now()})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	got, err := chats.GetChatByID(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	for i, m := range got.Messages {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Message)
	}

	byBob, err := chats.FindChatsByParticipant(ctx, bob)
	require.NoError(t, err)
	require.Len(t, byBob, 1)

	require.NoError(t, chats.DeleteChat(ctx, chat.ID))
	require.NoError(t, chats.DeleteChat(ctx, chat.ID), "deleting twice is not an error")

	_, err = chats.GetChatByID(ctx, chat.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = chats.AppendMessage(ctx, chat.ID, ChatMessage{Sender: alice, Message: "late", Date: time.Now()})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestChatsConcurrentAppendsAreNotLost(t *testing.T) {
	c := setupDB(t)
	chats := NewChatsStore(c.ChatsCollection())
	ctx := context.Background()

	alice, bob := bson.NewObjectID(), bson.NewObjectID()
	chat, err := chats.CreateChat(ctx, []bson.ObjectID{alice, bob}, &ChatMessage{Sender: alice, Message: "hi", Date: time.Now()})
	require.NoError(t, err)
	require.Len(t, chat.Messages, 1)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := alice
			if i%2 == 0 {
				sender = bob
			}
			_, err := chats.AppendMessage(ctx, chat.ID, ChatMessage{Sender: sender, Message: fmt.Sprint(i), Date: time.Now()})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := chats.GetChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, n+1)
}

func TestStartupRequirementsProjection(t *testing.T) {
	c := setupDB(t)
	startups := NewStartupsStore(c.StartupsCollection())
	ctx := context.Background()

	python := bson.NewObjectID()
	first, err := startups.CreateStartup(ctx, &Startup{
		Name:      "First",
		Logo:      &Logo{Data: []byte{1, 2, 3}, ImageType: "image/png"},
		JobOffers: []JobOffer{{ShortDescription: "backend", RequiredSkills: []bson.ObjectID{python}}},
	})
	require.NoError(t, err)
	_, err = startups.CreateStartup(ctx, &Startup{Name: "Second"})
	require.NoError(t, err)

	reqs, err := startups.ListStartupRequirements(ctx)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, first.ID, reqs[0].ID, "ordered by id")
	assert.Empty(t, reqs[0].Name, "display fields are not loaded")
	assert.Nil(t, reqs[0].Logo)
	require.Len(t, reqs[0].JobOffers, 1)
	assert.Equal(t, []bson.ObjectID{python}, reqs[0].JobOffers[0].RequiredSkills)

	full, err := startups.GetStartupByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", full.Name)
	require.NotNil(t, full.Logo)
	assert.Equal(t, []byte{1, 2, 3}, full.Logo.Data)

	_, err = startups.GetStartupByID(ctx, bson.NewObjectID())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseID(t *testing.T) {
	id := bson.NewObjectID()
	got, err := ParseID(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseID("not-an-id")
	assert.True(t, errors.Is(err, ErrInvalidID))

	_, err = ParseIDs([]string{id.Hex(), ""})
	assert.Error(t, err)
}
