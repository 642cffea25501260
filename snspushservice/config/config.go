package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-snspush-service/internal/dispatch"
	"github.com/tinywideclouds/go-snspush-service/internal/storage/dynamodb"
	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

type AuditBackend string

const (
	AuditBackendDynamoDB  AuditBackend = "dynamodb"
	AuditBackendFirestore AuditBackend = "firestore"
)

type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	DisabledTTL time.Duration
}

type AWSConfig struct {
	Region string
	// Base endpoint overrides, e.g. for localstack.
	SNSEndpoint      string
	DynamoDBEndpoint string
}

type AuditConfig struct {
	Backend AuditBackend
	// Table is the DynamoDB table or Firestore collection name.
	Table string
}

type DispatchConfig struct {
	MaxConcurrency int
	SendTimeout    time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	TopicID                string

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	AWS        AWSConfig
	Audit      AuditConfig
	Dispatch   DispatchConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// DispatchSettings maps the dispatch section onto the publisher config.
func (c *Config) DispatchSettings() dispatch.Config {
	return dispatch.Config{
		MaxConcurrency: c.Dispatch.MaxConcurrency,
		SendTimeout:    c.Dispatch.SendTimeout,
	}
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// AWS Overrides. AWS_DEFAULT_REGION wins over AWS_REGION.
	if val := os.Getenv("AWS_REGION"); val != "" {
		logger.Debug("Overriding config value", "key", "AWS_REGION", "source", "env")
		cfg.AWS.Region = val
	}
	if val := os.Getenv("AWS_DEFAULT_REGION"); val != "" {
		logger.Debug("Overriding config value", "key", "AWS_DEFAULT_REGION", "source", "env")
		cfg.AWS.Region = val
	}
	if val := os.Getenv("SNS_ENDPOINT"); val != "" {
		cfg.AWS.SNSEndpoint = val
	}
	if val := os.Getenv("DYNAMODB_ENDPOINT"); val != "" {
		cfg.AWS.DynamoDBEndpoint = val
	}

	// Audit Overrides
	if val := os.Getenv("AUDIT_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "AUDIT_BACKEND", "source", "env")
		cfg.Audit.Backend = AuditBackend(strings.ToLower(val))
	}
	if val := os.Getenv("AUDIT_TABLE"); val != "" {
		cfg.Audit.Table = val
	}

	// Dispatch Overrides
	if val := os.Getenv("DISPATCH_MAX_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Dispatch.MaxConcurrency = n
		}
	}
	if val := os.Getenv("DISPATCH_SEND_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			cfg.Dispatch.SendTimeout = d
		} else {
			logger.Warn("Ignoring invalid DISPATCH_SEND_TIMEOUT", "value", val)
		}
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.AWS.Region == "" {
		return nil, push.ErrMissingRegion
	}
	switch cfg.Audit.Backend {
	case "":
		cfg.Audit.Backend = AuditBackendDynamoDB
	case AuditBackendDynamoDB, AuditBackendFirestore:
	default:
		return nil, fmt.Errorf("%w: unsupported audit backend %q", push.ErrConfiguration, cfg.Audit.Backend)
	}
	if cfg.Audit.Table == "" {
		cfg.Audit.Table = dynamodb.DefaultTable
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Dispatch.MaxConcurrency <= 0 {
		cfg.Dispatch.MaxConcurrency = dispatch.DefaultMaxConcurrency
	}
	if cfg.Dispatch.SendTimeout <= 0 {
		cfg.Dispatch.SendTimeout = dispatch.DefaultSendTimeout
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
