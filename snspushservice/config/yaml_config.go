package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	Enabled     bool   `yaml:"enabled"`
	DisabledTTL string `yaml:"disabled_ttl"`
}

type YamlAWSConfig struct {
	Region           string `yaml:"region"`
	SNSEndpoint      string `yaml:"sns_endpoint"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"`
}

type YamlAuditConfig struct {
	Backend string `yaml:"backend"`
	Table   string `yaml:"table"`
}

type YamlDispatchConfig struct {
	MaxConcurrency int    `yaml:"max_concurrency"`
	SendTimeout    string `yaml:"send_timeout"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string             `yaml:"project_id"`
	ListenAddr             string             `yaml:"listen_addr"`
	TopicID                string             `yaml:"topic_id"`
	SubscriptionID         string             `yaml:"subscription_id"`
	SubscriptionDLQTopicID string             `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                `yaml:"num_pipeline_workers"`
	CorsConfig             YamlCorsConfig     `yaml:"cors"`
	RedisConfig            YamlRedisConfig    `yaml:"redis"`
	AWSConfig              YamlAWSConfig      `yaml:"aws"`
	AuditConfig            YamlAuditConfig    `yaml:"audit"`
	DispatchConfig         YamlDispatchConfig `yaml:"dispatch"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
// Durations that fail to parse are left zero and defaulted during validation.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:              baseCfg.ProjectID,
		ListenAddr:             baseCfg.ListenAddr,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:        baseCfg.RedisConfig.Addr,
			Password:    baseCfg.RedisConfig.Password,
			DB:          baseCfg.RedisConfig.DB,
			Enabled:     baseCfg.RedisConfig.Enabled,
			DisabledTTL: parseDuration(baseCfg.RedisConfig.DisabledTTL, "redis.disabled_ttl", logger),
		},
		AWS: AWSConfig{
			Region:           baseCfg.AWSConfig.Region,
			SNSEndpoint:      baseCfg.AWSConfig.SNSEndpoint,
			DynamoDBEndpoint: baseCfg.AWSConfig.DynamoDBEndpoint,
		},
		Audit: AuditConfig{
			Backend: AuditBackend(baseCfg.AuditConfig.Backend),
			Table:   baseCfg.AuditConfig.Table,
		},
		Dispatch: DispatchConfig{
			MaxConcurrency: baseCfg.DispatchConfig.MaxConcurrency,
			SendTimeout:    parseDuration(baseCfg.DispatchConfig.SendTimeout, "dispatch.send_timeout", logger),
		},
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"audit_backend", cfg.Audit.Backend,
	)

	return cfg, nil
}

func parseDuration(raw, key string, logger *slog.Logger) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("Ignoring invalid duration", "key", key, "value", raw, "err", err)
		return 0
	}
	return d
}
