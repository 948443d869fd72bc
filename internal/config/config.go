// README: Config loader; TAXIETA_* env (plus optional .env) for HTTP, artifacts, model backend, DB, Redis, Maps and logging.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "TAXIETA"

const (
	BackendFile   = "file"
	BackendRemote = "remote"
)

type HTTPConfig struct {
	Addr            string        `split_words:"true" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `split_words:"true" default:"10s"`
	WriteTimeout    time.Duration `split_words:"true" default:"30s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	CORSOrigins     []string      `split_words:"true" default:"*"`
	GinMode         string        `split_words:"true" default:"release" validate:"oneof=debug release test"`
}

type ArtifactsConfig struct {
	Model   string `split_words:"true" default:"artifacts/model.json"`
	Columns string `split_words:"true" default:"artifacts/features_used.json" validate:"required"`
	Average string `split_words:"true" default:"artifacts/avg_duration.json" validate:"required"`
}

type ModelConfig struct {
	Backend string        `split_words:"true" default:"file" validate:"oneof=file remote"`
	URL     string        `split_words:"true" validate:"required_if=Backend remote,omitempty,url"`
	Timeout time.Duration `split_words:"true" default:"5s"`
}

type Config struct {
	HTTP      HTTPConfig
	Artifacts ArtifactsConfig
	Model     ModelConfig
	Schema    struct {
		// Strict fails startup when derived features and model columns do not fully overlap.
		Strict bool `split_words:"true" default:"false"`
	}
	DB struct {
		// DSN empty keeps prediction history in memory.
		DSN string `split_words:"true"`
	}
	Redis struct {
		Addr     string        `split_words:"true"`
		CacheTTL time.Duration `split_words:"true" default:"24h"`
	}
	Maps struct {
		APIKey string `split_words:"true"`
	}
	Log struct {
		Level  string `split_words:"true" default:"info" validate:"oneof=debug info warn error"`
		Format string `split_words:"true" default:"text" validate:"oneof=text json"`
	}
	History struct {
		Capacity int `split_words:"true" default:"1000" validate:"min=1"`
	}
}

// Error reports which setting could not be loaded.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads a .env file if present (real environment wins), then TAXIETA_* variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		var perr *envconfig.ParseError
		if errors.As(err, &perr) {
			return Config{}, &Error{Field: perr.KeyName, Err: perr.Err}
		}
		return Config{}, &Error{Err: err}
	}

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Config{}, &Error{Field: verrs[0].Namespace(), Err: err}
		}
		return Config{}, &Error{Err: err}
	}
	return cfg, nil
}
