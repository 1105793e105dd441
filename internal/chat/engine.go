// Package chat implements the chat lifecycle (create, append, delete) and the fan-out of
// notifications to participants that are currently online.
package chat

import (
	"context"
	"sync"
	"time"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/apperr"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var log = logging.MustGetLogger("chat")

var (
	ErrChatNotFound        = apperr.NotFound("chat not found")
	ErrNotParticipant      = apperr.Forbidden("sender is not a participant of the chat")
	ErrInvalidParticipants = apperr.InvalidArg("a chat needs exactly two distinct participants")
	ErrUnknownParticipant  = apperr.NotFound("participant does not exist")
	ErrCreatorNotInChat    = apperr.InvalidArg("creator must be a participant")
	ErrEmptyMessage        = apperr.InvalidArg("message is empty")
)

// Store is the document store the engine persists chats in.
type Store interface {
	CreateChat(ctx context.Context, participants []bson.ObjectID, initial *data.ChatMessage) (*data.Chat, error)
	GetChatByID(ctx context.Context, id bson.ObjectID) (*data.Chat, error)
	AppendMessage(ctx context.Context, chatID bson.ObjectID, msg data.ChatMessage) (*data.Chat, error)
	DeleteChat(ctx context.Context, id bson.ObjectID) error
	FindChatsByParticipant(ctx context.Context, userID bson.ObjectID) ([]*data.Chat, error)
}

// Directory resolves user identities.
type Directory interface {
	UserExistsByID(ctx context.Context, id bson.ObjectID) (bool, error)
	GetProfiles(ctx context.Context, ids []bson.ObjectID) ([]*data.Profile, error)
}

// Notifier delivers events to users that are online. *presence.Registry implements it.
type Notifier interface {
	IsReachable(userID string) bool
	Emit(userID string, ev *v1.ServerEvent) error
}

// Engine mediates every chat state transition and notifies participants.
type Engine struct {
	store    Store
	users    Directory
	notifier Notifier

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time
}

// NewEngine returns an Engine persisting to store, resolving users through users and
// notifying through notifier.
func NewEngine(store Store, users Directory, notifier Notifier) *Engine {
	return &Engine{store: store, users: users, notifier: notifier, now: time.Now}
}

// timestamp returns the current time, never earlier than the previous one it returned.
func (e *Engine) timestamp() time.Time {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	t := e.now().UTC().Truncate(time.Millisecond) // the store keeps millisecond precision
	if t.Before(e.last) {
		t = e.last
	}
	e.last = t
	return t
}

// InitialMessage is the optional first message of a new chat.
type InitialMessage struct {
	Sender string
	Text   string
}

// CreateChatRequest describes a chat to create. Creator may be empty, in which case every
// participant is notified.
type CreateChatRequest struct {
	Participants []string
	Creator      string
	Message      *InitialMessage
}

// CreateChat persists a new chat and tells the other participant to refresh its chat list.
func (e *Engine) CreateChat(ctx context.Context, req CreateChatRequest) (*data.Chat, error) {
	if len(req.Participants) != 2 {
		return nil, ErrInvalidParticipants
	}
	participants, err := data.ParseIDs(req.Participants)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidParticipants, err.Error())
	}
	// compare parsed ids: hex is accepted in either case
	if participants[0] == participants[1] {
		return nil, ErrInvalidParticipants
	}

	for _, p := range participants {
		ok, err := e.users.UserExistsByID(ctx, p)
		if err != nil {
			return nil, apperr.Internal("failed to resolve participant", err)
		}
		if !ok {
			return nil, errors.Wrap(ErrUnknownParticipant, p.Hex())
		}
	}

	var creator string
	if req.Creator != "" {
		cid, err := data.ParseID(req.Creator)
		if err != nil || (cid != participants[0] && cid != participants[1]) {
			return nil, ErrCreatorNotInChat
		}
		creator = cid.Hex()
	}

	var initial *data.ChatMessage
	if req.Message != nil && req.Message.Text != "" {
		sender, err := data.ParseID(req.Message.Sender)
		if err != nil || (sender != participants[0] && sender != participants[1]) {
			return nil, ErrNotParticipant
		}
		initial = &data.ChatMessage{Sender: sender, Message: req.Message.Text, Date: e.timestamp()}
	}

	chat, err := e.store.CreateChat(ctx, participants, initial)
	if err != nil {
		return nil, apperr.Internal("failed to create chat", err)
	}

	chatID := chat.ID.Hex()
	for _, p := range participants {
		pid := p.Hex()
		if pid == creator {
			continue
		}
		e.notify(pid, &v1.ServerEvent{Type: v1.EventChatChanged, ChatID: chatID, Creator: creator})
	}
	return chat, nil
}

// AddMessage appends text from senderID to the chat and notifies the other participant.
//
// An unknown chat yields ErrChatNotFound; a sender who is not a participant yields
// ErrNotParticipant. In both cases nothing is persisted and nobody is notified.
func (e *Engine) AddMessage(ctx context.Context, chatID, senderID, text string) (*data.Chat, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}
	cid, err := data.ParseID(chatID)
	if err != nil {
		return nil, ErrChatNotFound
	}
	sender, err := data.ParseID(senderID)
	if err != nil {
		return nil, ErrNotParticipant
	}

	// Re-read before mutating; the store is the only source of truth.
	chat, err := e.store.GetChatByID(ctx, cid)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, apperr.Internal("failed to load chat", err)
	}
	if !chat.HasParticipant(sender) {
		log.Debugf("dropping message from %s: not a participant of chat %s", senderID, chatID)
		return nil, ErrNotParticipant
	}

	updated, err := e.store.AppendMessage(ctx, cid, data.ChatMessage{Sender: sender, Message: text, Date: e.timestamp()})
	if err != nil {
		// The participant guard was checked above, so a miss here means the chat was
		// deleted in between.
		if errors.Is(err, data.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, apperr.Internal("failed to append message", err)
	}

	from := sender.Hex()
	body := &v1.MessageBody{ChatID: cid.Hex(), Message: text, Sender: from}
	for _, p := range updated.Participants {
		if p == sender {
			continue
		}
		pid := p.Hex()
		e.notify(pid, &v1.ServerEvent{Type: v1.EventNewMessage, Sender: from, Message: body})
		e.notify(pid, &v1.ServerEvent{Type: v1.EventChatChanged, ChatID: cid.Hex()})
	}
	return updated, nil
}

// DeleteChat removes the chat and tells each former participant to drop it. Ownership is
// checked by the caller. Deleting an absent chat succeeds.
func (e *Engine) DeleteChat(ctx context.Context, chatID string, formerParticipants []string) error {
	cid, err := data.ParseID(chatID)
	if err != nil {
		return ErrChatNotFound
	}
	if err := e.store.DeleteChat(ctx, cid); err != nil {
		return apperr.Internal("failed to delete chat", err)
	}

	for _, p := range canonicalIDs(formerParticipants) {
		e.notify(p, &v1.ServerEvent{Type: v1.EventChatDeleted, ChatID: cid.Hex()})
	}
	return nil
}

// DeleteChatAs deletes the chat on behalf of actor, who must be one of its participants.
// The stored participant list is the notification list; claimed is only used when the chat
// no longer exists, in which case actor must appear in it.
func (e *Engine) DeleteChatAs(ctx context.Context, chatID, actor string, claimed []string) error {
	cid, err := data.ParseID(chatID)
	if err != nil {
		return ErrChatNotFound
	}
	aid, err := data.ParseID(actor)
	if err != nil {
		return ErrNotParticipant
	}

	chat, err := e.store.GetChatByID(ctx, cid)
	switch {
	case errors.Is(err, data.ErrNotFound):
		if !contains(canonicalIDs(claimed), aid.Hex()) {
			return ErrNotParticipant
		}
		return e.DeleteChat(ctx, chatID, claimed)
	case err != nil:
		return apperr.Internal("failed to load chat", err)
	}

	if !chat.HasParticipant(aid) {
		return ErrNotParticipant
	}
	former := make([]string, len(chat.Participants))
	for i, p := range chat.Participants {
		former[i] = p.Hex()
	}
	return e.DeleteChat(ctx, chatID, former)
}

// notify emits ev to userID if the user is online. Misses and failures are not errors.
func (e *Engine) notify(userID string, ev *v1.ServerEvent) {
	if e.notifier == nil || !e.notifier.IsReachable(userID) {
		return
	}
	if err := e.notifier.Emit(userID, ev); err != nil {
		log.Debugf("%s to %s not delivered: %v", ev.Type, userID, err)
	}
}

// canonicalIDs returns the distinct valid ids of list in lower-case hex, in order.
// Invalid entries are skipped.
func canonicalIDs(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[bson.ObjectID]bool, len(list))
	for _, s := range list {
		id, err := data.ParseID(s)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id.Hex())
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
