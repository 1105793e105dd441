// Command seed loads a YAML fixture of skills, users and startups into the configured
// store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/PaulBabatuyi/tumatch-chat/internal/config"
	"github.com/PaulBabatuyi/tumatch-chat/internal/logs"
	"github.com/PaulBabatuyi/tumatch-chat/internal/storage"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

var log = logging.MustGetLogger("seed")

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Critical(err)
		os.Exit(1)
	}
}

func flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tumatch-seed", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.StringP("fixture", "f", "", "fixture to load (required)")
	fs.String("store", "", "store driver: mongo or memory")
	fs.String("mongodb-uri", "", "MongoDB connection string")
	fs.String("database", "", "MongoDB database name")
	fs.Duration("timeout", 2*time.Minute, "give up after this long")
	return fs
}

// storeConfig reads the store section the way the API server does, then applies the
// flags given explicitly.
func storeConfig(fs *pflag.FlagSet) (config.Store, error) {
	var sc config.Store
	file, _ := fs.GetString("config")
	v, err := config.LoadConfig(file)
	if err != nil {
		return sc, err
	}
	for flag, key := range map[string]string{
		"store":       "store.driver",
		"mongodb-uri": "store.mongouri",
		"database":    "store.database",
	} {
		if f := fs.Lookup(flag); f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return sc, errors.Wrapf(err, "binding --%s", flag)
			}
		}
	}
	sc = config.Store{
		Driver:   v.GetString("store.driver"),
		MongoURI: v.GetString("store.mongouri"),
		Database: v.GetString("store.database"),
	}
	if sc.Driver == config.DriverMongo && sc.MongoURI == "" {
		return sc, errors.New("MONGODB_URI must be set for the mongo store")
	}
	return sc, nil
}

func run(args []string) error {
	fs := flags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, _ := fs.GetString("fixture")
	if path == "" {
		return errors.New("--fixture is required")
	}
	if _, err := logs.Setup(os.Stdout, "INFO", ""); err != nil {
		return err
	}

	sc, err := storeConfig(fs)
	if err != nil {
		return err
	}
	fx, err := LoadFixture(path)
	if err != nil {
		return err
	}

	timeout, _ := fs.GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stores, err := storage.Open(ctx, sc)
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.Close(context.Background())
	}()

	sum, err := Seed(ctx, stores, fx)
	fmt.Printf("skills: %d, users: %d (skipped %d), startups: %d\n", sum.Skills, sum.Users, sum.Skipped, sum.Startups)
	return err
}
