// Package pipeline contains the Pub/Sub message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// PublishCommandTransformer is a dataflow Transformer that unmarshals a raw
// message payload into a push.PublishCommand.
//
// Provider names are validated during decoding, so an unknown provider is
// rejected here rather than at dispatch time.
func PublishCommandTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*push.PublishCommand, bool, error) {
	var cmd push.PublishCommand

	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		// skip=true lets the StreamingService Nack/DLQ the message.
		return nil, true, fmt.Errorf("failed to unmarshal publish command from message %s: %w", msg.ID, err)
	}

	return &cmd, false, nil
}
