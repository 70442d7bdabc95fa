// Package config reads process settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ahmethakanbesel/nbp-datahub/internal/replicate"
)

type Config struct {
	NBPBaseURL   string        `validate:"required,url"`
	NBPTable     string        `validate:"oneof=A B C"`
	FetchTimeout time.Duration `validate:"gt=0"`

	DataDir string `validate:"required"`
	DBPath  string `validate:"required"`

	LogPath   string
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=text json"`

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	AWSBucket          string
	AWSEndpointURL     string
	S3Prefix           string

	KafkaBrokers []string
	KafkaTopic   string

	MetricsTextfile  string
	LenientTransform bool
	LockTTL          time.Duration `validate:"gt=0"`

	HTTPPort    string `validate:"required,numeric"`
	SyncWorkers int    `validate:"min=1,max=64"`
}

// Load reads configuration. Values already present in the environment win
// over values from the .env files, which win over defaults. Without files,
// ./.env is read when it exists.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	v.SetDefault("NBP_BASE_URL", "https://api.nbp.pl/api/exchangerates/tables")
	v.SetDefault("NBP_TABLE", "A")
	v.SetDefault("FETCH_TIMEOUT", "10s")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("DB_PATH", "data/local_datahub.db")
	v.SetDefault("LOG_PATH", "logs/pipeline.log")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("AWS_DEFAULT_REGION", "eu-central-1")
	v.SetDefault("AWS_BUCKET_NAME", "")
	v.SetDefault("AWS_ENDPOINT_URL", "")
	v.SetDefault("S3_PREFIX", replicate.DefaultPrefix)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "nbp-rates-loaded")
	v.SetDefault("METRICS_TEXTFILE", "")
	v.SetDefault("LENIENT_TRANSFORM", false)
	v.SetDefault("LOCK_TTL", "1h")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SYNC_WORKERS", 4)
	v.AutomaticEnv()

	cfg := Config{
		NBPBaseURL:         v.GetString("NBP_BASE_URL"),
		NBPTable:           strings.ToUpper(v.GetString("NBP_TABLE")),
		DataDir:            v.GetString("DATA_DIR"),
		DBPath:             v.GetString("DB_PATH"),
		LogPath:            v.GetString("LOG_PATH"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:          strings.ToLower(v.GetString("LOG_FORMAT")),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          v.GetString("AWS_DEFAULT_REGION"),
		AWSBucket:          v.GetString("AWS_BUCKET_NAME"),
		AWSEndpointURL:     v.GetString("AWS_ENDPOINT_URL"),
		S3Prefix:           v.GetString("S3_PREFIX"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:         v.GetString("KAFKA_TOPIC"),
		MetricsTextfile:    v.GetString("METRICS_TEXTFILE"),
		LenientTransform:   v.GetBool("LENIENT_TRANSFORM"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		SyncWorkers:        v.GetInt("SYNC_WORKERS"),
	}

	var err error
	if cfg.FetchTimeout, err = duration(v, "FETCH_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = duration(v, "LOCK_TTL"); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Replication returns the remote storage settings.
func (c Config) Replication() replicate.Settings {
	return replicate.Settings{
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		Region:          c.AWSRegion,
		Bucket:          c.AWSBucket,
		Prefix:          c.S3Prefix,
		Endpoint:        c.AWSEndpointURL,
	}
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
