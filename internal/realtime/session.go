// Package realtime dispatches client events arriving on one connection to the presence
// registry and the chat engine. It is transport agnostic: the gRPC Events stream and the
// WebSocket gateway both drive a Session.
package realtime

import (
	"context"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/chat"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/normalize"
	"github.com/PaulBabatuyi/tumatch-chat/internal/presence"
	"github.com/google/uuid"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("realtime")

// Engine is the part of *chat.Engine a session drives.
type Engine interface {
	CreateChat(ctx context.Context, req chat.CreateChatRequest) (*data.Chat, error)
	AddMessage(ctx context.Context, chatID, senderID, text string) (*data.Chat, error)
	DeleteChatAs(ctx context.Context, chatID, actor string, claimed []string) error
}

// Presence is the part of *presence.Registry a session needs.
type Presence interface {
	Register(connID, userID string, s presence.Sender) bool
	Unregister(connID string)
}

// Limiter throttles events per key. *middleware.LimiterStore implements it.
type Limiter interface {
	Allow(key string) bool
}

// Session is the server side of one authenticated connection. Every event is executed
// as the authenticated user; identities claimed in payloads are only checked against it.
type Session struct {
	id       string
	userID   string
	sender   presence.Sender
	presence Presence
	engine   Engine
	limiter  Limiter
}

// NewSession creates a session for a connection authenticated as userID. limiter may
// be nil.
func NewSession(userID string, sender presence.Sender, p Presence, e Engine, limiter Limiter) *Session {
	return &Session{
		id:       uuid.NewString(),
		userID:   userID,
		sender:   sender,
		presence: p,
		engine:   e,
		limiter:  limiter,
	}
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// UserID returns the authenticated user.
func (s *Session) UserID() string { return s.userID }

// Close removes the connection from the presence registry.
func (s *Session) Close() {
	s.presence.Unregister(s.id)
}

// Handle executes ev and returns the ack for the originating connection, or nil when the
// event was ignored or failed. Failures are logged and never reported to the client.
func (s *Session) Handle(ctx context.Context, ev *v1.ClientEvent) *v1.ServerEvent {
	if ev == nil {
		return nil
	}
	if s.limiter != nil && !s.limiter.Allow("events:"+s.userID) {
		log.Warningf("conn %s: event rate exceeded for %s, dropping %s", s.id, s.userID, ev.Type)
		return nil
	}

	var (
		chatID string
		ok     bool
	)
	switch ev.Type {
	case v1.EventRegisterPresence:
		ok = s.registerPresence(ev.UserID)
	case v1.EventSendMessage:
		chatID, ok = s.sendMessage(ctx, ev.SendMessage)
	case v1.EventCreateChat:
		chatID, ok = s.createChat(ctx, ev.CreateChat)
	case v1.EventDeleteChat:
		chatID, ok = s.deleteChat(ctx, ev.DeleteChat)
	default:
		log.Debugf("conn %s: unknown event type %q", s.id, ev.Type)
	}
	if !ok {
		return nil
	}
	return &v1.ServerEvent{Type: v1.EventAck, RequestID: ev.RequestID, ChatID: chatID}
}

func (s *Session) registerPresence(userID string) bool {
	if userID == "" || userID != s.userID {
		log.Warningf("conn %s: ignoring presence for %q, authenticated as %s", s.id, userID, s.userID)
		return false
	}
	return s.presence.Register(s.id, s.userID, s.sender)
}

// claims reports whether a payload identity is absent or names the acting user.
func (s *Session) claims(id string) bool {
	return id == "" || id == s.userID
}

func (s *Session) sendMessage(ctx context.Context, p *v1.SendMessagePayload) (string, bool) {
	if p == nil {
		return "", false
	}
	if !s.claims(p.Sender) || !s.claims(p.Message.Sender) {
		log.Warningf("conn %s: dropping message with spoofed sender", s.id)
		return "", false
	}
	text := normalize.Message(p.Message.Message)
	if text == "" {
		return "", false
	}
	if _, err := s.engine.AddMessage(ctx, p.Message.ChatID, s.userID, text); err != nil {
		log.Infof("conn %s: send-message to chat %s: %v", s.id, p.Message.ChatID, err)
		return "", false
	}
	return p.Message.ChatID, true
}

func (s *Session) createChat(ctx context.Context, p *v1.CreateChatPayload) (string, bool) {
	if p == nil {
		return "", false
	}
	if !s.claims(p.Creator) {
		log.Warningf("conn %s: dropping create-chat with spoofed creator", s.id)
		return "", false
	}
	req := chat.CreateChatRequest{Participants: p.Participants, Creator: s.userID}
	if p.Message != nil {
		if !s.claims(p.Message.Sender) {
			log.Warningf("conn %s: dropping create-chat with spoofed sender", s.id)
			return "", false
		}
		if text := normalize.Message(p.Message.Message); text != "" {
			req.Message = &chat.InitialMessage{Sender: s.userID, Text: text}
		}
	}

	c, err := s.engine.CreateChat(ctx, req)
	if err != nil {
		log.Infof("conn %s: create-chat: %v", s.id, err)
		return "", false
	}
	return c.ID.Hex(), true
}

func (s *Session) deleteChat(ctx context.Context, p *v1.DeleteChatPayload) (string, bool) {
	if p == nil {
		return "", false
	}
	if err := s.engine.DeleteChatAs(ctx, p.ChatID, s.userID, p.Participants); err != nil {
		log.Infof("conn %s: delete-chat %s: %v", s.id, p.ChatID, err)
		return "", false
	}
	return p.ChatID, true
}
