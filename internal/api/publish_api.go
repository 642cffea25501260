package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// Publisher is the subset of dispatch.Publisher the HTTP API needs.
type Publisher interface {
	PublishToEndpoint(ctx context.Context, endpoint string, req *push.PublishRequest) (string, error)
	PublishToEndpoints(ctx context.Context, endpoints []string, req *push.PublishRequest) (*push.BatchResult, error)
}

type PublishAPI struct {
	Publisher Publisher
	Logger    *slog.Logger
}

func NewPublishAPI(publisher Publisher, logger *slog.Logger) *PublishAPI {
	return &PublishAPI{
		Publisher: publisher,
		Logger:    logger.With("component", "PublishAPI"),
	}
}

// PublishEndpointRequest addresses a single endpoint.
type PublishEndpointRequest struct {
	Endpoint string `json:"endpoint"`
	push.PublishRequest
}

type PublishEndpointResponse struct {
	Endpoint  string `json:"endpoint"`
	MessageID string `json:"message_id"`
}

type ReceiptResponse struct {
	Endpoint  string `json:"endpoint"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type PublishResponse struct {
	DispatchID string            `json:"dispatch_id"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Audited    bool              `json:"audited"`
	Receipts   []ReceiptResponse `json:"receipts"`
}

// Publish handles POST /api/v1/publish (fan-out to many endpoints).
func (api *PublishAPI) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var cmd push.PublishCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		api.Logger.Warn("Publish: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, decodeErrorMessage(err))
		return
	}

	if !hasEndpoint(cmd.Endpoints) || len(cmd.Alert) == 0 {
		response.WriteJSONError(w, http.StatusUnprocessableEntity, "endpoints and alert are required")
		return
	}

	result, err := api.Publisher.PublishToEndpoints(ctx, cmd.Endpoints, &cmd.PublishRequest)
	if err != nil {
		api.Logger.Error("Publish: rejected", "caller", caller, "err", err)
		response.WriteJSONError(w, statusFor(err), err.Error())
		return
	}
	if result == nil {
		response.WriteJSONError(w, http.StatusUnprocessableEntity, "endpoints and alert are required")
		return
	}

	api.Logger.Info("Publish: dispatched", "caller", caller, "dispatch_id", result.DispatchID,
		"succeeded", result.Succeeded(), "failed", result.Failed())
	writeJSON(w, http.StatusOK, toPublishResponse(result))
}

// PublishEndpoint handles POST /api/v1/publish/endpoint (a single endpoint).
func (api *PublishAPI) PublishEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PublishEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Logger.Warn("PublishEndpoint: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, decodeErrorMessage(err))
		return
	}

	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || len(req.Alert) == 0 {
		response.WriteJSONError(w, http.StatusUnprocessableEntity, "endpoint and alert are required")
		return
	}

	messageID, err := api.Publisher.PublishToEndpoint(ctx, req.Endpoint, &req.PublishRequest)
	if err != nil {
		api.Logger.Warn("PublishEndpoint: failed", "caller", caller, "endpoint", req.Endpoint, "err", err)
		response.WriteJSONError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PublishEndpointResponse{Endpoint: req.Endpoint, MessageID: messageID})
}

// --- Helpers ---

func statusFor(err error) int {
	switch {
	case errors.Is(err, push.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, push.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeErrorMessage(err error) string {
	if errors.Is(err, push.ErrUnknownProvider) {
		return err.Error()
	}
	return "invalid json"
}

func hasEndpoint(endpoints []string) bool {
	for _, e := range endpoints {
		if strings.TrimSpace(e) != "" {
			return true
		}
	}
	return false
}

func toPublishResponse(result *push.BatchResult) PublishResponse {
	resp := PublishResponse{
		DispatchID: result.DispatchID,
		Succeeded:  result.Succeeded(),
		Failed:     result.Failed(),
		Audited:    result.Audited,
		Receipts:   make([]ReceiptResponse, 0, len(result.Receipts)),
	}
	for _, rc := range result.Receipts {
		view := ReceiptResponse{Endpoint: rc.Endpoint, MessageID: rc.MessageID}
		if rc.Err != nil {
			view.Error = rc.Err.Error()
		}
		resp.Receipts = append(resp.Receipts, view)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
