// Package dbtest provides a MongoDB for integration tests: MONGODB_URI when set, otherwise
// a disposable container. Tests are skipped when neither is available.
package dbtest

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

const image = "mongo:7"

// runMongo starts the container. testcontainers panics instead of returning an error
// when no Docker daemon can be found.
var runMongo = func(ctx context.Context) (*mongodb.MongoDBContainer, error) {
	return mongodb.Run(ctx, image)
}

var (
	once      sync.Once
	uri       string
	startErr  error
	container *mongodb.MongoDBContainer
)

// URI returns a connection string for a usable MongoDB or skips t.
func URI(t testing.TB) string {
	t.Helper()
	once.Do(start)
	if uri == "" {
		t.Skipf("MONGODB_URI not set and no container available; skipping integration test: %v", startErr)
	}
	return uri
}

// Terminate stops the container started by URI, if any. Call it from TestMain.
func Terminate() {
	if container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = container.Terminate(ctx)
}

func start() {
	if v := os.Getenv("MONGODB_URI"); v != "" {
		uri = v
		return
	}
	if os.Getenv("TESTCONTAINERS_DISABLED") != "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := launch(ctx, runMongo)
	if err != nil {
		startErr = err
		return
	}
	container = c

	s, err := c.ConnectionString(ctx)
	if err != nil {
		startErr = err
		return
	}
	uri = s
}

// launch calls run and turns a panic into an error.
func launch(ctx context.Context, run func(context.Context) (*mongodb.MongoDBContainer, error)) (c *mongodb.MongoDBContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, errors.Errorf("starting %s container: %v", image, r)
		}
	}()
	return run(ctx)
}
