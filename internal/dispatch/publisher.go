// --- File: internal/dispatch/publisher.go ---
// Package dispatch fans one logical alert out to many device endpoints and
// writes the single audit record of the call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-snspush-service/internal/audit"
	"github.com/tinywideclouds/go-snspush-service/internal/compose"
	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

const (
	DefaultMaxConcurrency = 8
	DefaultSendTimeout    = 10 * time.Second
)

// Config bounds the fan-out.
type Config struct {
	// MaxConcurrency is the number of endpoint sends in flight at once.
	MaxConcurrency int
	// SendTimeout bounds each transport call and the audit write.
	SendTimeout time.Duration
}

// Publisher is the dispatch coordinator.
type Publisher struct {
	transport push.Transport
	store     push.RecordStore
	endpoints push.EndpointCache
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublisher wires the coordinator. endpoints may be nil, which disables
// disabled-endpoint tracking.
func NewPublisher(
	cfg Config,
	transport push.Transport,
	store push.RecordStore,
	endpoints push.EndpointCache,
	logger *slog.Logger,
) (*Publisher, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is required", push.ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: record store is required", push.ErrConfiguration)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Publisher{
		transport: transport,
		store:     store,
		endpoints: endpoints,
		cfg:       cfg,
		logger:    logger.With("component", "Publisher"),
		now:       time.Now,
	}, nil
}

// PublishToEndpoint sends req to one endpoint and, when requested, audits it.
// An empty endpoint or alert is logged and skipped: it returns "", nil and has
// no side effects. Composition and transport errors are returned.
func (p *Publisher) PublishToEndpoint(ctx context.Context, endpoint string, req *push.PublishRequest) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || req == nil || len(req.Alert) == 0 {
		p.logger.Warn("Nothing to publish; skipping", "endpoint", endpoint, "has_alert", req != nil && len(req.Alert) > 0)
		return "", nil
	}

	env, err := compose.BuildEnvelope(req)
	if err != nil {
		return "", fmt.Errorf("failed to compose envelope: %w", err)
	}

	messageID, err := p.send(ctx, endpoint, env)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", endpoint, err)
	}
	p.logger.Debug("Published", "endpoint", endpoint, "message_id", messageID)

	if req.ShouldSave() {
		p.saveRecord(ctx, req, []string{endpoint}, p.logger)
	}
	return messageID, nil
}

// PublishToEndpoints sends req to every distinct endpoint. Per-endpoint failures
// are logged and reported in the receipts; they never stop the other sends or
// the audit write. The only returned errors are configuration errors.
func (p *Publisher) PublishToEndpoints(ctx context.Context, endpoints []string, req *push.PublishRequest) (*push.BatchResult, error) {
	targets := audit.Dedupe(trimAll(endpoints))
	if len(targets) == 0 || req == nil || len(req.Alert) == 0 {
		p.logger.Warn("Nothing to publish; skipping batch", "endpoints", len(targets), "has_alert", req != nil && len(req.Alert) > 0)
		return nil, nil
	}
	if _, err := compose.ResolveComposers(req.ProviderList()); err != nil {
		return nil, err
	}

	result := &push.BatchResult{
		DispatchID: uuid.NewString(),
		Receipts:   make([]push.Receipt, len(targets)),
	}
	log := p.logger.With("dispatch_id", result.DispatchID)

	env, err := compose.BuildEnvelope(req)
	if err != nil {
		log.Error("Failed to compose envelope; no endpoint attempted", "err", err)
		err = fmt.Errorf("failed to compose envelope: %w", err)
		for i, endpoint := range targets {
			result.Receipts[i] = push.Receipt{Endpoint: endpoint, Err: err}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.cfg.MaxConcurrency)
		for i, endpoint := range targets {
			g.Go(func() error {
				messageID, err := p.send(ctx, endpoint, env)
				result.Receipts[i] = push.Receipt{Endpoint: endpoint, MessageID: messageID, Err: err}
				if err != nil {
					log.Warn("Publish to endpoint failed", "endpoint", endpoint, "err", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if req.ShouldSave() {
		result.Audited = p.saveRecord(ctx, req, targets, log)
	}

	log.Info("Batch dispatched",
		"endpoints", len(targets),
		"succeeded", result.Succeeded(),
		"failed", result.Failed(),
		"audited", result.Audited,
	)
	return result, nil
}

func (p *Publisher) send(ctx context.Context, endpoint string, env *compose.Envelope) (string, error) {
	if p.endpoints != nil && p.endpoints.IsDisabled(ctx, endpoint) {
		return "", fmt.Errorf("%w: known disabled endpoint", push.ErrEndpointDisabled)
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	defer cancel()

	messageID, err := p.transport.Send(sendCtx, endpoint, env.Message, env.Attributes)
	if err != nil {
		if errors.Is(err, push.ErrEndpointDisabled) && p.endpoints != nil {
			if markErr := p.endpoints.MarkDisabled(ctx, endpoint); markErr != nil {
				p.logger.Warn("Failed to remember disabled endpoint", "endpoint", endpoint, "err", markErr)
			}
		}
		return "", err
	}
	return messageID, nil
}

// saveRecord writes the call's single audit record. Failures are logged only:
// the notification has already gone out.
func (p *Publisher) saveRecord(ctx context.Context, req *push.PublishRequest, endpoints []string, log *slog.Logger) bool {
	record, ok := audit.BuildRecord(audit.Input{
		Alert:      req.Alert,
		Data:       req.Data,
		Endpoints:  endpoints,
		IdentityID: req.IdentityID,
		Segments:   req.Segments,
		Marketing:  req.Marketing,
	}, p.now())
	if !ok {
		log.Debug("Alert has no body; no audit record written")
		return false
	}

	storeCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	defer cancel()

	if err := p.store.PutRecord(storeCtx, record); err != nil {
		log.Error("Failed to write audit record", "org_id", record.OrgID, "err", err)
		return false
	}
	return true
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
