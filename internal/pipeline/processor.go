package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// Publisher is the subset of dispatch.Publisher the processor needs.
type Publisher interface {
	PublishToEndpoints(ctx context.Context, endpoints []string, req *push.PublishRequest) (*push.BatchResult, error)
}

// NewProcessor creates the stream processor that fans a command out to its endpoints.
//
// Per-endpoint failures are reported in the batch result and never returned:
// redelivering the message would resend to the endpoints that already succeeded.
// Only configuration errors are returned.
func NewProcessor(publisher Publisher, logger *slog.Logger) messagepipeline.StreamProcessor[push.PublishCommand] {
	return func(ctx context.Context, original messagepipeline.Message, cmd *push.PublishCommand) error {
		procLogger := logger.With(
			"pubsub_msg_id", original.ID,
			"endpoints", len(cmd.Endpoints),
		)

		result, err := publisher.PublishToEndpoints(ctx, cmd.Endpoints, &cmd.PublishRequest)
		if err != nil {
			if errors.Is(err, push.ErrConfiguration) {
				procLogger.Error("Publish command rejected", "err", err)
				return err
			}
			procLogger.Warn("Publish command failed", "err", err)
			return nil
		}

		if result == nil {
			procLogger.Info("Nothing to publish; dropping command.")
			return nil
		}

		procLogger.Info("Publish command processed",
			"dispatch_id", result.DispatchID,
			"succeeded", result.Succeeded(),
			"failed", result.Failed(),
			"audited", result.Audited,
		)
		return nil
	}
}
