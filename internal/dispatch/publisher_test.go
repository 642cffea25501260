package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-snspush-service/internal/compose"
	"github.com/tinywideclouds/go-snspush-service/internal/dispatch"
	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, target, message string, attrs map[string]push.Attribute) (string, error) {
	args := m.Called(ctx, target, message, attrs)
	return args.String(0), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) PutRecord(ctx context.Context, record *push.AuditRecord) error {
	return m.Called(ctx, record).Error(0)
}

type mockEndpointCache struct {
	mock.Mock
}

func (m *mockEndpointCache) IsDisabled(ctx context.Context, endpoint string) bool {
	return m.Called(ctx, endpoint).Bool(0)
}

func (m *mockEndpointCache) MarkDisabled(ctx context.Context, endpoint string) error {
	return m.Called(ctx, endpoint).Error(0)
}

// hangingTransport blocks on one target until its context expires.
type hangingTransport struct {
	mu      sync.Mutex
	hangOn  string
	targets []string
}

func (h *hangingTransport) Send(ctx context.Context, target, _ string, _ map[string]push.Attribute) (string, error) {
	h.mu.Lock()
	h.targets = append(h.targets, target)
	h.mu.Unlock()
	if target == h.hangOn {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "msg-" + target, nil
}

func newPublisher(t *testing.T, transport push.Transport, store push.RecordStore, cache push.EndpointCache) *dispatch.Publisher {
	t.Helper()
	p, err := dispatch.NewPublisher(dispatch.Config{MaxConcurrency: 4, SendTimeout: time.Second}, transport, store, cache, newTestLogger())
	require.NoError(t, err)
	return p
}

func baseRequest() *push.PublishRequest {
	return &push.PublishRequest{
		Alert:     push.Alert{"title": "T", "body": "B"},
		Data:      push.Data{"org_id": "42"},
		Providers: []push.Provider{push.ProviderGCM},
	}
}

func boolPtr(b bool) *bool { return &b }

// --- Tests ---

func TestNewPublisher_RequiresCollaborators(t *testing.T) {
	_, err := dispatch.NewPublisher(dispatch.Config{}, nil, new(mockStore), nil, newTestLogger())
	assert.True(t, errors.Is(err, push.ErrConfiguration))

	_, err = dispatch.NewPublisher(dispatch.Config{}, new(mockTransport), nil, nil, newTestLogger())
	assert.True(t, errors.Is(err, push.ErrConfiguration))
}

func TestPublishToEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("Happy Path - send then audit the single endpoint", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)

		transport.On("Send", mock.Anything, "arn:ep-1", mock.MatchedBy(func(msg string) bool {
			var env map[string]string
			return json.Unmarshal([]byte(msg), &env) == nil && env["GCM"] != "" && env["APNS"] == ""
		}), compose.TTLAttributes(push.DefaultTTL)).Return("msg-1", nil).Once()

		store.On("PutRecord", mock.Anything, mock.MatchedBy(func(r *push.AuditRecord) bool {
			return r.Body == "B" && r.Title == "T" && r.OrgID == "42" && !r.Marketing &&
				assert.ObjectsAreEqual([]string{"arn:ep-1"}, r.Endpoints) &&
				r.SegmentCounts == nil && len(r.Segments) == 0
		})).Return(nil).Once()

		id, err := publisher.PublishToEndpoint(ctx, "arn:ep-1", baseRequest())

		require.NoError(t, err)
		assert.Equal(t, "msg-1", id)
		transport.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("Transport failure propagates and skips the audit", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)

		transport.On("Send", mock.Anything, "arn:ep-1", mock.Anything, mock.Anything).Return("", errors.New("throttled"))

		_, err := publisher.PublishToEndpoint(ctx, "arn:ep-1", baseRequest())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
		store.AssertNotCalled(t, "PutRecord", mock.Anything, mock.Anything)
	})

	t.Run("Audit failure is swallowed", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)

		transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("msg-1", nil)
		store.On("PutRecord", mock.Anything, mock.Anything).Return(errors.New("table missing"))

		id, err := publisher.PublishToEndpoint(ctx, "arn:ep-1", baseRequest())

		require.NoError(t, err)
		assert.Equal(t, "msg-1", id)
	})

	t.Run("Empty endpoint or alert has no side effects", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)

		id, err := publisher.PublishToEndpoint(ctx, "  ", baseRequest())
		require.NoError(t, err)
		assert.Empty(t, id)

		id, err = publisher.PublishToEndpoint(ctx, "arn:ep-1", &push.PublishRequest{})
		require.NoError(t, err)
		assert.Empty(t, id)

		transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "PutRecord", mock.Anything, mock.Anything)
	})

	t.Run("Unknown provider is a configuration error", func(t *testing.T) {
		transport := new(mockTransport)
		publisher := newPublisher(t, transport, new(mockStore), nil)
		req := baseRequest()
		req.Providers = []push.Provider{"WNS"}

		_, err := publisher.PublishToEndpoint(ctx, "arn:ep-1", req)

		assert.True(t, errors.Is(err, push.ErrConfiguration))
		transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPublishToEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("One failing endpoint does not stop the others or the audit", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)

		transport.On("Send", mock.Anything, "arn:1", mock.Anything, mock.Anything).Return("m1", nil).Once()
		transport.On("Send", mock.Anything, "arn:2", mock.Anything, mock.Anything).Return("", errors.New("boom")).Once()
		transport.On("Send", mock.Anything, "arn:3", mock.Anything, mock.Anything).Return("m3", nil).Once()
		store.On("PutRecord", mock.Anything, mock.MatchedBy(func(r *push.AuditRecord) bool {
			return assert.ObjectsAreEqual([]string{"arn:1", "arn:2", "arn:3"}, r.Endpoints)
		})).Return(nil).Once()

		res, err := publisher.PublishToEndpoints(ctx, []string{"arn:1", "arn:2", "arn:3", "arn:1"}, baseRequest())

		require.NoError(t, err)
		require.NotNil(t, res)
		assert.NotEmpty(t, res.DispatchID)
		assert.Equal(t, 2, res.Succeeded())
		assert.Equal(t, 1, res.Failed())
		assert.Equal(t, "arn:2", res.Receipts[1].Endpoint)
		assert.ErrorContains(t, res.Receipts[1].Err, "boom")
		assert.True(t, res.Audited)
		transport.AssertNumberOfCalls(t, "Send", 3)
		store.AssertNumberOfCalls(t, "PutRecord", 1)
	})

	t.Run("save=false writes no audit", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)
		req := baseRequest()
		req.Save = boolPtr(false)

		transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("m", nil)

		res, err := publisher.PublishToEndpoints(ctx, []string{"arn:1", "arn:2"}, req)

		require.NoError(t, err)
		assert.False(t, res.Audited)
		store.AssertNotCalled(t, "PutRecord", mock.Anything, mock.Anything)
	})

	t.Run("No body writes no audit", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)
		req := baseRequest()
		req.Alert = push.Alert{"title": "only a title"}

		transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("m", nil)

		res, err := publisher.PublishToEndpoints(ctx, []string{"arn:1"}, req)

		require.NoError(t, err)
		assert.False(t, res.Audited)
		store.AssertNotCalled(t, "PutRecord", mock.Anything, mock.Anything)
	})

	t.Run("Segments are aggregated on the record", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)
		req := baseRequest()
		req.Segments = []string{"fav_team1", "lang_en", "promo"}
		req.Marketing = true

		transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("m", nil)
		store.On("PutRecord", mock.Anything, mock.MatchedBy(func(r *push.AuditRecord) bool {
			return r.Marketing && r.SegmentCounts != nil &&
				*r.SegmentCounts == push.SegmentCounts{Favorite: 1, Language: 1, Default: 1}
		})).Return(nil).Once()

		_, err := publisher.PublishToEndpoints(ctx, []string{"arn:1"}, req)

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("Empty endpoint list or alert has no side effects", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)

		res, err := publisher.PublishToEndpoints(ctx, nil, baseRequest())
		require.NoError(t, err)
		assert.Nil(t, res)

		res, err = publisher.PublishToEndpoints(ctx, []string{"", " "}, baseRequest())
		require.NoError(t, err)
		assert.Nil(t, res)

		res, err = publisher.PublishToEndpoints(ctx, []string{"arn:1"}, &push.PublishRequest{Data: push.Data{"org_id": "1"}})
		require.NoError(t, err)
		assert.Nil(t, res)

		transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "PutRecord", mock.Anything, mock.Anything)
	})

	t.Run("Unknown provider fails before any send", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)
		req := baseRequest()
		req.Providers = []push.Provider{push.ProviderGCM, "ADM"}

		res, err := publisher.PublishToEndpoints(ctx, []string{"arn:1"}, req)

		assert.Nil(t, res)
		assert.True(t, errors.Is(err, push.ErrUnknownProvider))
		transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "PutRecord", mock.Anything, mock.Anything)
	})

	t.Run("Composition failure marks every receipt and still audits", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		publisher := newPublisher(t, transport, store, nil)
		req := baseRequest()
		req.Options = push.Options{"time_to_live": "never"}

		store.On("PutRecord", mock.Anything, mock.Anything).Return(nil).Once()

		res, err := publisher.PublishToEndpoints(ctx, []string{"arn:1", "arn:2"}, req)

		require.NoError(t, err)
		assert.Equal(t, 2, res.Failed())
		assert.True(t, res.Audited)
		transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("A hanging endpoint times out without blocking the batch", func(t *testing.T) {
		transport := &hangingTransport{hangOn: "arn:slow"}
		store := new(mockStore)
		publisher, err := dispatch.NewPublisher(
			dispatch.Config{MaxConcurrency: 2, SendTimeout: 50 * time.Millisecond},
			transport, store, nil, newTestLogger(),
		)
		require.NoError(t, err)

		store.On("PutRecord", mock.Anything, mock.Anything).Return(nil).Once()

		endpoints := []string{"arn:slow"}
		for i := 0; i < 5; i++ {
			endpoints = append(endpoints, fmt.Sprintf("arn:%d", i))
		}

		res, err := publisher.PublishToEndpoints(ctx, endpoints, baseRequest())

		require.NoError(t, err)
		assert.Len(t, transport.targets, 6)
		assert.Equal(t, 5, res.Succeeded())
		assert.True(t, errors.Is(res.Receipts[0].Err, context.DeadlineExceeded))
		assert.True(t, res.Audited)
	})
}

func TestPublisher_DisabledEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("Self-Healing - disabled endpoint is remembered", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		cache := new(mockEndpointCache)
		publisher := newPublisher(t, transport, store, cache)
		req := baseRequest()
		req.Save = boolPtr(false)

		cache.On("IsDisabled", mock.Anything, mock.Anything).Return(false)
		transport.On("Send", mock.Anything, "arn:dead", mock.Anything, mock.Anything).
			Return("", fmt.Errorf("sns publish: %w", push.ErrEndpointDisabled))
		transport.On("Send", mock.Anything, "arn:ok", mock.Anything, mock.Anything).Return("m", nil)
		cache.On("MarkDisabled", mock.Anything, "arn:dead").Return(nil).Once()

		res, err := publisher.PublishToEndpoints(ctx, []string{"arn:dead", "arn:ok"}, req)

		require.NoError(t, err)
		assert.Equal(t, 1, res.Succeeded())
		cache.AssertExpectations(t)
	})

	t.Run("Known disabled endpoint is skipped without a transport call", func(t *testing.T) {
		transport := new(mockTransport)
		store := new(mockStore)
		cache := new(mockEndpointCache)
		publisher := newPublisher(t, transport, store, cache)

		cache.On("IsDisabled", mock.Anything, "arn:dead").Return(true)
		cache.On("IsDisabled", mock.Anything, "arn:ok").Return(false)
		transport.On("Send", mock.Anything, "arn:ok", mock.Anything, mock.Anything).Return("m", nil).Once()
		store.On("PutRecord", mock.Anything, mock.Anything).Return(nil).Once()

		res, err := publisher.PublishToEndpoints(ctx, []string{"arn:dead", "arn:ok"}, baseRequest())

		require.NoError(t, err)
		assert.True(t, errors.Is(res.Receipts[0].Err, push.ErrEndpointDisabled))
		transport.AssertNumberOfCalls(t, "Send", 1)
		cache.AssertNotCalled(t, "MarkDisabled", mock.Anything, mock.Anything)
	})
}
