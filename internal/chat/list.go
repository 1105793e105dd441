package chat

import (
	"context"

	"github.com/PaulBabatuyi/tumatch-chat/internal/apperr"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// View is a chat with its participants' display profiles.
type View struct {
	Chat     *data.Chat
	Profiles map[bson.ObjectID]*data.Profile
}

// ListChats returns the chats userID takes part in, oldest first, with participant
// profiles. Participants that no longer exist have no profile entry.
func (e *Engine) ListChats(ctx context.Context, userID string) ([]View, error) {
	uid, err := data.ParseID(userID)
	if err != nil {
		return nil, apperr.InvalidArg("invalid user id")
	}

	chats, err := e.store.FindChatsByParticipant(ctx, uid)
	if err != nil {
		return nil, apperr.Internal("failed to list chats", err)
	}
	if len(chats) == 0 {
		return []View{}, nil
	}

	seen := make(map[bson.ObjectID]bool)
	var ids []bson.ObjectID
	for _, c := range chats {
		for _, p := range c.Participants {
			if !seen[p] {
				seen[p] = true
				ids = append(ids, p)
			}
		}
	}

	profiles, err := e.users.GetProfiles(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load participant profiles", err)
	}
	byID := make(map[bson.ObjectID]*data.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	views := make([]View, 0, len(chats))
	for _, c := range chats {
		v := View{Chat: c, Profiles: make(map[bson.ObjectID]*data.Profile, len(c.Participants))}
		for _, p := range c.Participants {
			if prof, ok := byID[p]; ok {
				v.Profiles[p] = prof
			}
		}
		views = append(views, v)
	}
	return views, nil
}
