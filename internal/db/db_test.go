package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/PaulBabatuyi/tumatch-chat/internal/db/dbtest"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// These tests are integration tests and require a running MongoDB instance
// (MONGODB_URI or a local container runtime).

func TestMain(m *testing.M) {
	code := m.Run()
	dbtest.Terminate()
	os.Exit(code)
}

func TestNewAndCreateIndexes(t *testing.T) {
	uri := dbtest.URI(t)

	ctx := context.Background()
	c, err := New(ctx, uri, Options{Database: "tumatch_db_test"})
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = c.Drop(context.Background())
		_ = c.Close(context.Background())
	}()

	// should be able to create indexes without error, and twice in a row
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes (second run) failed: %v", err)
	}

	// unique skill value is enforced
	if _, err := c.SkillsCollection().InsertOne(ctx, bson.M{"label": "Go", "value": "go"}); err != nil {
		t.Fatalf("insert skill: %v", err)
	}
	_, err = c.SkillsCollection().InsertOne(ctx, bson.M{"label": "Golang", "value": "go"})
	if !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("expected duplicate key error for skill value, got %v", err)
	}
}

func TestNewGivesUpOnUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := New(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200",
		Options{ConnectTimeout: 200 * time.Millisecond, MaxElapsed: time.Second})
	if err == nil {
		t.Fatal("expected error connecting to a closed port")
	}
}
