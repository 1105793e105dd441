// Package config loads server settings from flags, environment variables and an optional
// YAML file, in that order of precedence.
package config

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Server    Server
	Store     Store
	JWT       JWT
	RateLimit RateLimit
	Log       Log
	Recommend Recommend
}

type Server struct {
	Port       string
	WSAddr     string
	TLSCert    string
	TLSKey     string
	RequireTLS bool

	// AllowedOrigins restricts WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

type Store struct {
	Driver   string
	MongoURI string
	Database string
}

type JWT struct {
	Secret    string
	Keys      string // kid:secret,kid2:secret2
	ActiveKid string
	TTL       time.Duration
}

type RateLimit struct {
	RPM             int // Register and Login, per email
	Burst           int
	EventsPerMinute int // real-time events, per user
	EventsBurst     int
}

type Log struct {
	Level string
	File  string
}

type Recommend struct {
	PageSize  int
	LogoWidth int
}

// env maps config keys to the environment variables that set them.
var env = map[string]string{
	"server.port":               "PORT",
	"server.wsaddr":             "WS_ADDR",
	"server.tlscert":            "TLS_CERT",
	"server.tlskey":             "TLS_KEY",
	"server.requiretls":         "REQUIRE_TLS",
	"server.allowedorigins":     "WS_ALLOWED_ORIGINS",
	"store.driver":              "STORE_DRIVER",
	"store.mongouri":            "MONGODB_URI",
	"store.database":            "MONGODB_DATABASE",
	"jwt.secret":                "JWT_SECRET",
	"jwt.keys":                  "JWT_KEYS",
	"jwt.activekid":             "JWT_ACTIVE_KID",
	"jwt.ttl":                   "JWT_TTL",
	"ratelimit.rpm":             "RATE_LIMIT_RPM",
	"ratelimit.eventsperminute": "EVENTS_RATE_LIMIT_RPM",
	"log.level":                 "LOG_LEVEL",
	"log.file":                  "LOG_FILE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "50051")
	v.SetDefault("server.wsaddr", ":8080")
	v.SetDefault("store.driver", DriverMongo)
	v.SetDefault("store.database", "tumatch")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("ratelimit.rpm", 10)
	v.SetDefault("ratelimit.burst", 3)
	v.SetDefault("ratelimit.eventsperminute", 120)
	v.SetDefault("ratelimit.eventsburst", 20)
	v.SetDefault("log.level", "INFO")
	v.SetDefault("recommend.pagesize", 10)
	v.SetDefault("recommend.logowidth", 280)
}

// LoadConfig returns a viper instance with defaults and environment bindings. If
// filename is not empty the YAML file is read too; a missing file is an error.
func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, errors.Wrapf(err, "binding %s", name)
		}
	}

	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", filename)
	}
	return v, nil
}

// ParseConfig decodes and validates the settings held by v.
func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Flags defines the command line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.String("port", "", "gRPC listen port")
	fs.String("ws-addr", "", "WebSocket gateway listen address; empty string keeps the default")
	fs.String("store", "", "store driver: mongo or memory")
	fs.String("mongodb-uri", "", "MongoDB connection string")
	fs.String("log-level", "", "log level (DEBUG, INFO, WARNING, ERROR)")
	fs.String("log-file", "", "also write logs to this file, rotated")
	return fs
}

var flagKeys = map[string]string{
	"port":        "server.port",
	"ws-addr":     "server.wsaddr",
	"store":       "store.driver",
	"mongodb-uri": "store.mongouri",
	"log-level":   "log.level",
	"log-file":    "log.file",
}

// Load parses args with the flag set from Flags and returns the resulting config.
func Load(name string, args []string) (*Config, error) {
	fs := Flags(name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	file, _ := fs.GetString("config")
	v, err := LoadConfig(file)
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		// only flags given explicitly override env and file
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "binding --%s", flag)
			}
		}
	}
	return ParseConfig(v)
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI must be set for the mongo store")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.JWT.Secret == "" && c.JWT.Keys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("token lifetime must be positive")
	}

	if n, err := strconv.Atoi(c.Server.Port); err != nil || n <= 0 || n > 65535 {
		return errors.Errorf("invalid port %q", c.Server.Port)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.Server.RequireTLS && c.Server.TLSCert == "" {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.RateLimit.RPM <= 0 {
		c.RateLimit.RPM = 10
	}
	return nil
}
