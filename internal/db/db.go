// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"github.com/cenkalti/backoff/v4"
	"github.com/op/go-logging"

	"go.mongodb.org/mongo-driver/v2/bson"           // Index keys
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

var log = logging.MustGetLogger("db")

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "tumatch"

// Options tune how New connects.
type Options struct {
	Database       string
	ConnectTimeout time.Duration
	// MaxElapsed bounds the total time spent retrying the initial ping.
	MaxElapsed time.Duration
}

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the application database; collections are accessed through it
	db *mongo.Database
}

// New connects to MongoDB and returns a Client. The first ping is retried with
// exponential backoff so the server can start before the database is ready.
func New(ctx context.Context, mongoURI string, o ...Options) (*Client, error) {
	cfg := Options{Database: DefaultDatabase, ConnectTimeout: 10 * time.Second, MaxElapsed: 30 * time.Second}
	if len(o) > 0 {
		if o[0].Database != "" {
			cfg.Database = o[0].Database
		}
		if o[0].ConnectTimeout > 0 {
			cfg.ConnectTimeout = o[0].ConnectTimeout
		}
		if o[0].MaxElapsed > 0 {
			cfg.MaxElapsed = o[0].MaxElapsed
		}
	}

	opts := options.Client().
		ApplyURI(mongoURI).                   // Parse connection string
		SetConnectTimeout(cfg.ConnectTimeout) // Max time per connection attempt

	// Connect only validates options; no network round trip happens yet
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.MaxElapsed

	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pctx, readpref.Primary())
	}
	notify := func(err error, wait time.Duration) {
		log.Warningf("mongo ping failed, retrying in %s: %v", wait, err)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(cfg.Database), // created lazily on first write
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// SkillsCollection returns the skills collection.
func (c *Client) SkillsCollection() *mongo.Collection {
	return c.db.Collection("skills")
}

// StartupsCollection returns the startups collection.
func (c *Client) StartupsCollection() *mongo.Collection {
	return c.db.Collection("startups")
}

// ChatsCollection returns the chats collection.
func (c *Client) ChatsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== USERS =====
	// Unique email: prevents duplicate registration, serves GetUserByEmail
	_, err := c.UsersCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// ===== SKILLS =====
	// Unique value: at most one skill document per distinct value
	_, err = c.SkillsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "value", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create skills index: %w", err)
	}

	// ===== CHATS =====
	// Multikey index on participants: serves FindChatsByParticipant and the
	// participant guard in AppendMessage
	_, err = c.ChatsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create chats index: %w", err)
	}

	return nil
}

// Drop removes the whole database. Used by tests.
func (c *Client) Drop(ctx context.Context) error {
	return c.db.Drop(ctx)
}
