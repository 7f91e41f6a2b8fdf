// Package config handles loading and parsing application configuration.
// It supports two sources for the config file path (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// An optional .env file in the working directory is loaded first, so any
// of the variables below (CONFIG_PATH included) can live there.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers understood by the backend package.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMongo  = "mongo"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity: "dev", "staging", "prod".
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	HTTPServer `yaml:"http_server"`

	Storage Storage `yaml:"storage"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`
}

// Storage selects and configures the document store.
type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite" validate:"oneof=sqlite bolt mongo"`

	// Path is the database file for the sqlite and bolt drivers.
	Path string `yaml:"path" env:"STORAGE_PATH" validate:"required_unless=Driver mongo"`

	// Collection is the collection (table, bucket) holding student documents.
	Collection string `yaml:"collection" env:"STORAGE_COLLECTION" env-default:"alunos" validate:"required"`

	MongoURI      string `yaml:"mongo_uri" env:"MONGO_URI" validate:"required_if=Driver mongo"`
	MongoDatabase string `yaml:"mongo_database" env:"MONGO_DATABASE" validate:"required_if=Driver mongo"`
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// into the process environment. Missing files are not an error, and
// variables already set in the environment win.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// MustLoad reads, validates, and returns the application config.
//
// Functions prefixed with "Must" are allowed to fatal on failure: if this
// returns, the config is valid.
func MustLoad() *Config {
	if err := LoadDotEnv(); err != nil {
		log.Fatalf("cannot load .env: %s", err.Error())
	}

	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}

	return cfg
}
