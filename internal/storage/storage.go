// Package storage opens the document store selected by configuration: MongoDB or the
// in-memory store.
package storage

import (
	"context"

	"github.com/PaulBabatuyi/tumatch-chat/internal/chat"
	"github.com/PaulBabatuyi/tumatch-chat/internal/config"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/db"
	"github.com/PaulBabatuyi/tumatch-chat/internal/memstore"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var log = logging.MustGetLogger("storage")

type Users interface {
	CreateUser(ctx context.Context, u *data.User) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	UserExistsByID(ctx context.Context, id bson.ObjectID) (bool, error)
	GetProfiles(ctx context.Context, ids []bson.ObjectID) ([]*data.Profile, error)
}

type Skills interface {
	UpsertSkills(ctx context.Context, skills []data.Skill) ([]bson.ObjectID, error)
}

type Startups interface {
	CreateStartup(ctx context.Context, st *data.Startup) (*data.Startup, error)
	GetStartupByID(ctx context.Context, id bson.ObjectID) (*data.Startup, error)
	ListStartupRequirements(ctx context.Context) ([]*data.Startup, error)
}

// Stores groups the collections the server works with.
type Stores struct {
	Users    Users
	Skills   Skills
	Startups Startups
	Chats    chat.Store

	close func(context.Context) error
}

// Close releases the underlying connection, if any.
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Memory returns stores backed by a fresh in-memory store.
func Memory() *Stores {
	m := memstore.New()
	return &Stores{Users: m, Skills: m, Startups: m, Chats: m}
}

// Open connects to the configured driver. For MongoDB the indexes are created before
// returning.
func Open(ctx context.Context, cfg config.Store) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warning("using the in-memory store; data is lost on exit")
		return Memory(), nil
	case config.DriverMongo, "":
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
	}

	client, err := db.New(ctx, cfg.MongoURI, db.Options{Database: cfg.Database})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to DB")
	}
	if err := client.CreateIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, errors.Wrap(err, "failed to create indexes")
	}
	log.Infof("connected to MongoDB database %q", cfg.Database)

	return &Stores{
		Users:    data.NewUsersStore(client.UsersCollection()),
		Skills:   data.NewSkillsStore(client.SkillsCollection()),
		Startups: data.NewStartupsStore(client.StartupsCollection()),
		Chats:    data.NewChatsStore(client.ChatsCollection()),
		close:    client.Close,
	}, nil
}
