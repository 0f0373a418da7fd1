package vectorstore

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config addresses the durable vector mirror named in spec §4.8 ("vectors
// mirrored to durable store... so indices can be rebuilt").
type Config struct {
	URL        string
	Collection string
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case ConfigErrorMissingURL:
		return "VECTORSTORE_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid VECTORSTORE_URL=%q; expected absolute URL like http://localhost:6333", e.Value)
	case ConfigErrorMissingCollection:
		return "VECTORSTORE_COLLECTION is required"
	default:
		return "invalid vectorstore config"
	}
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:        strings.TrimSpace(os.Getenv("VECTORSTORE_URL")),
		Collection: strings.TrimSpace(os.Getenv("VECTORSTORE_COLLECTION")),
	}
	if cfg.Collection == "" {
		cfg.Collection = "mediareef_blocks"
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL, Cause: err}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	return nil
}
