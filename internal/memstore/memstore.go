// Package memstore is an in-memory document store with the same method set as the
// MongoDB stores in package data. It backs the "memory" store driver and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/normalize"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store holds users, skills, startups and chats. Returned documents are copies, so
// callers may modify them freely.
type Store struct {
	mu       sync.RWMutex
	users    map[bson.ObjectID]*data.User
	skills   map[bson.ObjectID]*data.Skill
	startups map[bson.ObjectID]*data.Startup
	chats    map[bson.ObjectID]*data.Chat
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[bson.ObjectID]*data.User),
		skills:   make(map[bson.ObjectID]*data.Skill),
		startups: make(map[bson.ObjectID]*data.Startup),
		chats:    make(map[bson.ObjectID]*data.Chat),
	}
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *data.User) (*data.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = normalize.Email(u.Email)
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, errors.Wrapf(data.ErrDuplicate, "user %s", u.Email)
		}
	}
	now := time.Now()
	u.ID = bson.NewObjectID()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Skills == nil {
		u.Skills = []bson.ObjectID{}
	}
	s.users[u.ID] = copyUser(u)
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*data.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = normalize.Email(email)
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, errors.Wrapf(data.ErrNotFound, "user %s", email)
}

func (s *Store) GetUserByID(_ context.Context, id bson.ObjectID) (*data.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.Wrapf(data.ErrNotFound, "user %s", id.Hex())
	}
	return copyUser(u), nil
}

func (s *Store) UserExistsByID(_ context.Context, id bson.ObjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *Store) GetProfiles(_ context.Context, ids []bson.ObjectID) ([]*data.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*data.Profile
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, &data.Profile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Profession: u.Profession})
		}
	}
	return out, nil
}

// ---- skills ----

func (s *Store) UpsertSkills(_ context.Context, skills []data.Skill) ([]bson.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]bson.ObjectID, 0, len(skills))
	for _, sk := range skills {
		if sk.Value == "" {
			return nil, errors.New("skill value is required")
		}
		id, found := bson.NilObjectID, false
		for _, existing := range s.skills {
			if existing.Value == sk.Value {
				id, found = existing.ID, true
				break
			}
		}
		if !found {
			id = bson.NewObjectID()
			s.skills[id] = &data.Skill{ID: id, Label: sk.Label, Value: sk.Value}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ---- startups ----

func (s *Store) CreateStartup(_ context.Context, st *data.Startup) (*data.Startup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	for i := range st.JobOffers {
		if st.JobOffers[i].ID.IsZero() {
			st.JobOffers[i].ID = bson.NewObjectID()
		}
	}
	st.ID = bson.NewObjectID()
	s.startups[st.ID] = copyStartup(st)
	return st, nil
}

func (s *Store) GetStartupByID(_ context.Context, id bson.ObjectID) (*data.Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.startups[id]
	if !ok {
		return nil, errors.Wrapf(data.ErrNotFound, "startup %s", id.Hex())
	}
	return copyStartup(st), nil
}

// ListStartupRequirements returns ids and job offer requirements ordered by id.
func (s *Store) ListStartupRequirements(_ context.Context) ([]*data.Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*data.Startup, 0, len(s.startups))
	for _, st := range s.startups {
		offers := make([]data.JobOffer, len(st.JobOffers))
		for i, o := range st.JobOffers {
			offers[i] = data.JobOffer{RequiredSkills: append([]bson.ObjectID(nil), o.RequiredSkills...)}
		}
		out = append(out, &data.Startup{ID: st.ID, JobOffers: offers})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

// ---- chats ----

func (s *Store) CreateChat(_ context.Context, participants []bson.ObjectID, initial *data.ChatMessage) (*data.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := &data.Chat{
		ID:           bson.NewObjectID(),
		Participants: append([]bson.ObjectID(nil), participants...),
		Messages:     []data.ChatMessage{},
	}
	if initial != nil {
		msg := *initial
		msg.ID = bson.NewObjectID()
		chat.Messages = append(chat.Messages, msg)
	}
	s.chats[chat.ID] = chat
	return copyChat(chat), nil
}

func (s *Store) GetChatByID(_ context.Context, id bson.ObjectID) (*data.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, errors.Wrapf(data.ErrNotFound, "chat %s", id.Hex())
	}
	return copyChat(c), nil
}

// AppendMessage appends under the store lock, so concurrent appends are never lost.
func (s *Store) AppendMessage(_ context.Context, chatID bson.ObjectID, msg data.ChatMessage) (*data.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok || !c.HasParticipant(msg.Sender) {
		return nil, errors.Wrapf(data.ErrNotFound, "chat %s with participant %s", chatID.Hex(), msg.Sender.Hex())
	}
	if msg.ID.IsZero() {
		msg.ID = bson.NewObjectID()
	}
	c.Messages = append(c.Messages, msg)
	return copyChat(c), nil
}

func (s *Store) DeleteChat(_ context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
	return nil
}

func (s *Store) FindChatsByParticipant(_ context.Context, userID bson.ObjectID) ([]*data.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*data.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, copyChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func copyUser(u *data.User) *data.User {
	c := *u
	c.Skills = append([]bson.ObjectID{}, u.Skills...)
	return &c
}

func copyStartup(st *data.Startup) *data.Startup {
	c := *st
	if st.Logo != nil {
		logo := *st.Logo
		logo.Data = append([]byte(nil), st.Logo.Data...)
		c.Logo = &logo
	}
	c.CoFounders = append([]bson.ObjectID(nil), st.CoFounders...)
	c.JobOffers = make([]data.JobOffer, len(st.JobOffers))
	for i, o := range st.JobOffers {
		o.RequiredSkills = append([]bson.ObjectID(nil), o.RequiredSkills...)
		c.JobOffers[i] = o
	}
	return &c
}

func copyChat(ch *data.Chat) *data.Chat {
	c := *ch
	c.Participants = append([]bson.ObjectID(nil), ch.Participants...)
	c.Messages = append([]data.ChatMessage{}, ch.Messages...)
	return &c
}
