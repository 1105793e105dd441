package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/chat"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/memstore"
	"github.com/PaulBabatuyi/tumatch-chat/internal/middleware"
	"github.com/PaulBabatuyi/tumatch-chat/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type inbox struct {
	mu     sync.Mutex
	events []*v1.ServerEvent
}

func (i *inbox) Send(ev *v1.ServerEvent) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, ev)
	return nil
}

func (i *inbox) count(t v1.EventType) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, ev := range i.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type env struct {
	store  *memstore.Store
	reg    *presence.Registry
	engine *chat.Engine
	alice  string
	bob    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	a, err := store.CreateUser(ctx, &data.User{Email: "alice@example.com"})
	require.NoError(t, err)
	b, err := store.CreateUser(ctx, &data.User{Email: "bob@example.com"})
	require.NoError(t, err)
	reg := presence.NewRegistry()
	return &env{store: store, reg: reg, engine: chat.NewEngine(store, store, reg), alice: a.ID.Hex(), bob: b.ID.Hex()}
}

func (e *env) connect(t *testing.T, user string) (*Session, *inbox) {
	t.Helper()
	in := &inbox{}
	s := NewSession(user, in, e.reg, e.engine, nil)
	ack := s.Handle(context.Background(), &v1.ClientEvent{Type: v1.EventRegisterPresence, UserID: user})
	require.NotNil(t, ack)
	return s, in
}

func (e *env) createChat(t *testing.T, s *Session) string {
	t.Helper()
	ack := s.Handle(context.Background(), &v1.ClientEvent{
		Type:       v1.EventCreateChat,
		CreateChat: &v1.CreateChatPayload{Participants: []string{e.alice, e.bob}},
	})
	require.NotNil(t, ack)
	require.NotEmpty(t, ack.ChatID)
	return ack.ChatID
}

func TestSession_RegisterPresence(t *testing.T) {
	e := newEnv(t)
	s := NewSession(e.alice, &inbox{}, e.reg, e.engine, nil)
	ctx := context.Background()

	assert.Nil(t, s.Handle(ctx, &v1.ClientEvent{Type: v1.EventRegisterPresence, UserID: ""}))
	assert.Nil(t, s.Handle(ctx, &v1.ClientEvent{Type: v1.EventRegisterPresence, UserID: e.bob}))
	assert.False(t, e.reg.IsReachable(e.bob), "cannot join someone else's room")
	assert.False(t, e.reg.IsReachable(e.alice))

	ack := s.Handle(ctx, &v1.ClientEvent{Type: v1.EventRegisterPresence, RequestID: "r1", UserID: e.alice})
	require.NotNil(t, ack)
	assert.Equal(t, v1.EventAck, ack.Type)
	assert.Equal(t, "r1", ack.RequestID)
	assert.True(t, e.reg.IsReachable(e.alice))

	s.Close()
	s.Close()
	assert.False(t, e.reg.IsReachable(e.alice))
}

func TestSession_SendMessage(t *testing.T) {
	e := newEnv(t)
	alice, aliceIn := e.connect(t, e.alice)
	_, bobIn := e.connect(t, e.bob)
	chatID := e.createChat(t, alice)
	ctx := context.Background()

	ack := alice.Handle(ctx, &v1.ClientEvent{
		Type:      v1.EventSendMessage,
		RequestID: "m1",
		SendMessage: &v1.SendMessagePayload{
			Sender:  e.alice,
			Message: v1.MessageBody{ChatID: chatID, Message: "  <b>hi</b> & bye ", Sender: e.alice},
		},
	})
	require.NotNil(t, ack)
	assert.Equal(t, chatID, ack.ChatID)
	assert.Equal(t, "m1", ack.RequestID)

	c, err := e.store.GetChatByID(ctx, mustID(t, chatID))
	require.NoError(t, err)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, "hi &amp; bye", c.Messages[0].Message)

	assert.Equal(t, 1, bobIn.count(v1.EventNewMessage))
	assert.Zero(t, aliceIn.count(v1.EventNewMessage))
}

func TestSession_SendMessageDropsSpoofedOrEmpty(t *testing.T) {
	e := newEnv(t)
	alice, _ := e.connect(t, e.alice)
	chatID := e.createChat(t, alice)
	ctx := context.Background()

	spoofed := &v1.ClientEvent{Type: v1.EventSendMessage, SendMessage: &v1.SendMessagePayload{
		Sender:  e.bob,
		Message: v1.MessageBody{ChatID: chatID, Message: "from bob, honest", Sender: e.bob},
	}}
	assert.Nil(t, alice.Handle(ctx, spoofed))

	blank := &v1.ClientEvent{Type: v1.EventSendMessage, SendMessage: &v1.SendMessagePayload{
		Message: v1.MessageBody{ChatID: chatID, Message: "   "},
	}}
	assert.Nil(t, alice.Handle(ctx, blank))

	missing := &v1.ClientEvent{Type: v1.EventSendMessage, SendMessage: &v1.SendMessagePayload{
		Message: v1.MessageBody{ChatID: bson.NewObjectID().Hex(), Message: "hello"},
	}}
	assert.Nil(t, alice.Handle(ctx, missing))
	assert.Nil(t, alice.Handle(ctx, &v1.ClientEvent{Type: v1.EventSendMessage}))

	c, err := e.store.GetChatByID(ctx, mustID(t, chatID))
	require.NoError(t, err)
	assert.Empty(t, c.Messages)
}

func TestSession_CreateChat(t *testing.T) {
	e := newEnv(t)
	alice, _ := e.connect(t, e.alice)
	_, bobIn := e.connect(t, e.bob)
	ctx := context.Background()

	spoofed := alice.Handle(ctx, &v1.ClientEvent{Type: v1.EventCreateChat, CreateChat: &v1.CreateChatPayload{
		Participants: []string{e.alice, e.bob}, Creator: e.bob,
	}})
	assert.Nil(t, spoofed)

	ack := alice.Handle(ctx, &v1.ClientEvent{Type: v1.EventCreateChat, CreateChat: &v1.CreateChatPayload{
		Participants: []string{e.alice, e.bob},
		Message:      &v1.MessageBody{Message: "nice startup"},
	}})
	require.NotNil(t, ack)

	c, err := e.store.GetChatByID(ctx, mustID(t, ack.ChatID))
	require.NoError(t, err)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, e.alice, c.Messages[0].Sender.Hex())
	assert.Equal(t, 1, bobIn.count(v1.EventChatChanged))
}

func TestSession_DeleteChat(t *testing.T) {
	e := newEnv(t)
	alice, _ := e.connect(t, e.alice)
	bob, bobIn := e.connect(t, e.bob)
	chatID := e.createChat(t, alice)
	ctx := context.Background()

	outsider := bson.NewObjectID().Hex()
	mallory := NewSession(outsider, &inbox{}, e.reg, e.engine, nil)
	assert.Nil(t, mallory.Handle(ctx, &v1.ClientEvent{Type: v1.EventDeleteChat, DeleteChat: &v1.DeleteChatPayload{
		ChatID: chatID, Participants: []string{outsider},
	}}))
	_, err := e.store.GetChatByID(ctx, mustID(t, chatID))
	require.NoError(t, err)

	ack := bob.Handle(ctx, &v1.ClientEvent{Type: v1.EventDeleteChat, DeleteChat: &v1.DeleteChatPayload{
		ChatID: chatID, Participants: []string{e.alice, e.bob},
	}})
	require.NotNil(t, ack)
	assert.Equal(t, chatID, ack.ChatID)
	assert.Equal(t, 1, bobIn.count(v1.EventChatDeleted))

	assert.Nil(t, alice.Handle(ctx, &v1.ClientEvent{Type: v1.EventSendMessage, SendMessage: &v1.SendMessagePayload{
		Message: v1.MessageBody{ChatID: chatID, Message: "still there?"},
	}}))
}

func TestSession_RateLimited(t *testing.T) {
	e := newEnv(t)
	limiter := middleware.NewLimiterStore(1, 2, time.Hour)
	defer limiter.Stop()
	s := NewSession(e.alice, &inbox{}, e.reg, e.engine, limiter)
	ctx := context.Background()

	reg := &v1.ClientEvent{Type: v1.EventRegisterPresence, UserID: e.alice}
	assert.NotNil(t, s.Handle(ctx, reg))
	assert.NotNil(t, s.Handle(ctx, reg))
	assert.Nil(t, s.Handle(ctx, reg))
}

func TestSession_UnknownEvent(t *testing.T) {
	e := newEnv(t)
	s := NewSession(e.alice, &inbox{}, e.reg, e.engine, nil)
	assert.Nil(t, s.Handle(context.Background(), &v1.ClientEvent{Type: "join"}))
	assert.Nil(t, s.Handle(context.Background(), nil))
	assert.NotEqual(t, s.ID(), NewSession(e.alice, &inbox{}, e.reg, e.engine, nil).ID())
}

func mustID(t *testing.T, hex string) bson.ObjectID {
	t.Helper()
	id, err := data.ParseID(hex)
	require.NoError(t, err)
	return id
}
