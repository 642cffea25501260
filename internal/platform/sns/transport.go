// --- File: internal/platform/sns/transport.go ---
// Package sns delivers envelopes to SNS mobile platform endpoints.
package sns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// messageStructureJSON tells SNS the message is a per-protocol JSON object.
const messageStructureJSON = "json"

// PublishClient defines the subset of the SNS client we use.
// This allows mocking for unit tests.
type PublishClient interface {
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

type Transport struct {
	client PublishClient
	logger *slog.Logger
}

// New builds an SNS client for region. endpoint overrides the service URL
// (e.g. localstack) when non-empty. A missing region is fatal.
func New(ctx context.Context, region, endpoint string, logger *slog.Logger) (*Transport, error) {
	if region == "" {
		return nil, push.ErrMissingRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := awssns.NewFromConfig(cfg, func(o *awssns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewTransport(client, logger), nil
}

// NewTransport accepts the concrete client but stores it as the interface.
func NewTransport(client PublishClient, logger *slog.Logger) *Transport {
	return &Transport{
		client: client,
		logger: logger.With("component", "SNSTransport"),
	}
}

// Send publishes one envelope to one endpoint ARN and returns the SNS message id.
func (t *Transport) Send(ctx context.Context, target string, message string, attributes map[string]push.Attribute) (string, error) {
	out, err := t.client.Publish(ctx, &awssns.PublishInput{
		TargetArn:         aws.String(target),
		MessageStructure:  aws.String(messageStructureJSON),
		Message:           aws.String(message),
		MessageAttributes: messageAttributes(attributes),
	})
	if err != nil {
		var disabled *types.EndpointDisabledException
		if errors.As(err, &disabled) {
			t.logger.Info("SNS endpoint is disabled", "endpoint", target)
			return "", fmt.Errorf("sns publish: %w: %w", push.ErrEndpointDisabled, err)
		}
		return "", fmt.Errorf("sns publish: %w: %w", push.ErrTransport, err)
	}
	return aws.ToString(out.MessageId), nil
}

func messageAttributes(attributes map[string]push.Attribute) map[string]types.MessageAttributeValue {
	if len(attributes) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attributes))
	for key, attr := range attributes {
		out[key] = types.MessageAttributeValue{
			DataType:    aws.String(attr.DataType),
			StringValue: aws.String(attr.StringValue),
		}
	}
	return out
}
