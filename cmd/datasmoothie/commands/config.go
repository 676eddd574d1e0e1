package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"datasmoothie-client/lib/configutil"

	"github.com/go-playground/validator/v10"
)

const apiKeyEnv = "DATASMOOTHIE_API_KEY"

type Config struct {
	ApiKey   string `json:"api_key" validate:"required"`
	BaseUrl  string `json:"base_url" validate:"omitempty,url"`
	Language string `json:"language"`
	// CacheDir holds the on-disk survey cache, empty disables it.
	CacheDir   string `json:"cache_dir"`
	CacheTtl   string `json:"cache_ttl" validate:"omitempty,duration"`
	MetaMaxAge string `json:"meta_max_age" validate:"omitempty,duration"`
}

var configValidator = func() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	if err != nil {
		panic(err)
	}
	return v
}()

// LoadConfig reads the config file, a relative path is searched for from
// the working directory upwards. A missing file is not an error as long as
// the api key is given through the environment.
func LoadConfig(path string) (Config, error) {
	var (
		cfg Config
		err error
	)
	if filepath.IsAbs(path) {
		cfg, err = configutil.ReadConfig[Config](path)
	} else {
		cfg, err = configutil.ReadRecursively[Config](path)
	}
	if os.IsNotExist(err) {
		slog.Debug("no config file found", "path", path)
	} else if err != nil {
		return Config{}, err
	}

	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.ApiKey = key
	}
	err = configValidator.Struct(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config (the api key may also be set with %s): %w", apiKeyEnv, err)
	}
	return cfg, nil
}

func (c Config) cacheTtl() time.Duration {
	d, err := time.ParseDuration(c.CacheTtl)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func (c Config) metaMaxAge() time.Duration {
	d, err := time.ParseDuration(c.MetaMaxAge)
	if err != nil {
		return 0
	}
	return d
}
