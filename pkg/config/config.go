package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every environment override, e.g.
// UADCHECK_CONFIDENCE_THRESHOLD=0.75.
const EnvPrefix = "UADCHECK_"

// Config holds the engine-wide settings. The registry and schema documents it
// points at are configuration inputs, not request data.
type Config struct {
	// ConfidenceThreshold is the inclusive lower bound for an acceptable
	// extraction confidence.
	ConfidenceThreshold float64 `koanf:"confidence_threshold" validate:"gte=0,lte=1"`
	// CrossSourceSeverity is the severity assigned to cross-source mismatch
	// findings when the rule does not declare its own.
	CrossSourceSeverity string `koanf:"cross_source_severity" validate:"oneof=error warn info"`
	RegistryPath        string `koanf:"registry_path"`
	SchemaPath          string `koanf:"schema_path"`
	LogLevel            string `koanf:"log_level"             validate:"oneof=debug info warn error"`
	LogJSON             bool   `koanf:"log_json"`
}

// Default returns the built-in configuration, mirroring the extractor's
// historical defaults.
func Default() *Config {
	return &Config{
		ConfidenceThreshold: 0.8,
		CrossSourceSeverity: "warn",
		LogLevel:            "info",
	}
}

// Load resolves configuration from defaults overlaid with UADCHECK_*
// environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load configuration defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration invariants.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
