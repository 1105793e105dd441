// Package v1 holds the wire types and gRPC service description for chat.v1.ChatService.
//
// Messages are plain Go structs encoded with the JSON codec registered in codec.go, so the
// same types travel over the gRPC stream and the WebSocket gateway.
package v1

import "time"

// EventType names a real-time event.
type EventType string

// Client -> server events.
const (
	EventRegisterPresence EventType = "register-presence"
	EventSendMessage      EventType = "send-message"
	EventCreateChat       EventType = "create-chat"
	EventDeleteChat       EventType = "delete-chat"
)

// Server -> client events.
const (
	EventNewMessage  EventType = "new-message-notification"
	EventChatChanged EventType = "chat-changed"
	EventChatDeleted EventType = "chat-deleted"
	EventAck         EventType = "ack"
)

// MessageBody is a single chat message as carried on the wire.
type MessageBody struct {
	ChatID  string `json:"chatId,omitempty"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// SendMessagePayload appends a message to an existing chat.
type SendMessagePayload struct {
	Sender  string      `json:"sender"`
	Message MessageBody `json:"message"`
}

// CreateChatPayload creates a chat between two users, optionally with a first message.
type CreateChatPayload struct {
	Participants []string     `json:"participants"`
	Message      *MessageBody `json:"message,omitempty"`
	Creator      string       `json:"creator"`
}

// DeleteChatPayload deletes a chat and names the participants to notify.
type DeleteChatPayload struct {
	ChatID       string   `json:"chatId"`
	Participants []string `json:"participants"`
}

// ClientEvent is one message received from a connected client. Exactly one payload field
// is expected to be set, matching Type.
type ClientEvent struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"requestId,omitempty"`

	UserID      string              `json:"userId,omitempty"`
	SendMessage *SendMessagePayload `json:"sendMessage,omitempty"`
	CreateChat  *CreateChatPayload  `json:"createChat,omitempty"`
	DeleteChat  *DeleteChatPayload  `json:"deleteChat,omitempty"`
}

// ServerEvent is one message pushed to a connected client.
type ServerEvent struct {
	Type      EventType    `json:"type"`
	RequestID string       `json:"requestId,omitempty"`
	ChatID    string       `json:"chatId,omitempty"`
	Creator   string       `json:"creator,omitempty"`
	Sender    string       `json:"sender,omitempty"`
	Message   *MessageBody `json:"message,omitempty"`
}

// SkillInput is a skill as entered by a user; Value is the dedup key.
type SkillInput struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// RegisterRequest creates an account. Profession defaults to student and Skills are
// upserted by value.
type RegisterRequest struct {
	Email      string       `json:"email"`
	Password   string       `json:"password"`
	FirstName  string       `json:"firstName"`
	LastName   string       `json:"lastName"`
	Profession string       `json:"profession"`
	Skills     []SkillInput `json:"skills,omitempty"`
}

func (r *RegisterRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ListChatsRequest lists the caller's chats; the caller comes from the token.
type ListChatsRequest struct{}

// Participant is a chat member hydrated with its public profile.
type Participant struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Profession string `json:"profession,omitempty"`
}

// ChatMessage is one stored message; Sender is a user id.
type ChatMessage struct {
	Sender  string    `json:"sender"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// Chat is a conversation between two participants, messages oldest first.
type Chat struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	Messages     []ChatMessage `json:"messages"`
}

// ListChatsResponse holds every chat the caller takes part in.
type ListChatsResponse struct {
	Chats []Chat `json:"chats"`
}

// RecommendationsRequest asks for the ranked startups of UserID (the caller when empty)
// and the first PageSize hydrated records.
type RecommendationsRequest struct {
	UserID   string `json:"userId,omitempty"`
	PageSize int    `json:"pageSize"`
}

// Option is a labelled choice such as an industry or an investment stage.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// JobOffer is an open role; RequiredSkills holds skill ids.
type JobOffer struct {
	ShortDescription string   `json:"shortDescription,omitempty"`
	LongDescription  string   `json:"longDescription,omitempty"`
	RequiredSkills   []string `json:"requiredSkills"`
}

// Startup is a startup record as shown in recommendations. Inline logos arrive as a
// data: URL in LogoURL.
type Startup struct {
	ID               string     `json:"id"`
	Name             string     `json:"startupName"`
	Slogan           string     `json:"slogan,omitempty"`
	ShortDescription string     `json:"shortDescription,omitempty"`
	LongDescription  string     `json:"longDescription,omitempty"`
	Industry         Option     `json:"industry"`
	BusinessModel    Option     `json:"businessModel"`
	InvestmentStage  Option     `json:"investmentStage"`
	WebsiteURL       string     `json:"websiteURL,omitempty"`
	LogoURL          string     `json:"logoUrl,omitempty"`
	JobOffers        []JobOffer `json:"jobOffers"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// RecommendationsResponse is the full ranking plus the first page of startups. Neither
// list is ever null.
type RecommendationsResponse struct {
	Recommendation     []string  `json:"recommendation"`
	InitialStartupLoad []Startup `json:"initialStartupLoad"`
}
