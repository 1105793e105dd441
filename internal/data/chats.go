package data

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore provides chat database operations. Messages are embedded in the chat
// document in append order.
type ChatsStore struct {
	// coll is reference to "chats" collection in MongoDB
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using given collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// CreateChat inserts a chat between participants, seeded with initial when non-nil.
func (c *ChatsStore) CreateChat(ctx context.Context, participants []bson.ObjectID, initial *ChatMessage) (*Chat, error) {
	chat := &Chat{
		Participants: participants,
		Messages:     []ChatMessage{}, // stored as [] rather than null
	}
	if initial != nil {
		msg := *initial
		msg.ID = bson.NewObjectID()
		chat.Messages = append(chat.Messages, msg)
	}

	result, err := c.coll.InsertOne(ctx, chat)
	if err != nil {
		return nil, errors.Wrap(err, "insert chat")
	}

	// Extract MongoDB's auto-generated _id; this is the chat id sent to clients
	chat.ID = result.InsertedID.(bson.ObjectID)
	return chat, nil
}

// GetChatByID returns the chat with the given id.
func (c *ChatsStore) GetChatByID(ctx context.Context, id bson.ObjectID) (*Chat, error) {
	var chat Chat
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "chat %s", id.Hex())
		}
		return nil, errors.Wrap(err, "find chat")
	}
	return &chat, nil
}

// AppendMessage pushes msg onto the chat's message list and returns the updated chat.
//
// The filter requires msg.Sender to be a participant, and the push happens server-side, so
// concurrent appends to the same chat never overwrite each other. ErrNotFound is returned
// when the chat is gone or the sender is not a participant.
func (c *ChatsStore) AppendMessage(ctx context.Context, chatID bson.ObjectID, msg ChatMessage) (*Chat, error) {
	if msg.ID.IsZero() {
		msg.ID = bson.NewObjectID()
	}

	filter := bson.M{
		"_id":          chatID,
		"participants": msg.Sender, // matches when sender is any element of the array
	}
	update := bson.M{"$push": bson.M{"messages": msg}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var chat Chat
	err := c.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "chat %s with participant %s", chatID.Hex(), msg.Sender.Hex())
		}
		return nil, errors.Wrap(err, "append message")
	}
	return &chat, nil
}

// DeleteChat removes the chat. Deleting a chat that does not exist is not an error.
func (c *ChatsStore) DeleteChat(ctx context.Context, id bson.ObjectID) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "delete chat")
	}
	return nil
}

// FindChatsByParticipant returns every chat userID takes part in, oldest first.
func (c *ChatsStore) FindChatsByParticipant(ctx context.Context, userID bson.ObjectID) ([]*Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := c.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find chats")
	}
	// Ensure cursor is closed when done (cleanup)
	defer cursor.Close(ctx)

	var chats []*Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, errors.Wrap(err, "decode chats")
	}
	return chats, nil
}
