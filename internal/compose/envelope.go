package compose

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// TTL attribute keys understood by the transport. All three are always sent;
// the transport ignores the ones for protocols it is not delivering to.
const (
	AttrAPNSTTL        = "AWS.SNS.MOBILE.APNS.TTL"
	AttrAPNSSandboxTTL = "AWS.SNS.MOBILE.APNS_SANDBOX.TTL"
	AttrGCMTTL         = "AWS.SNS.MOBILE.GCM.TTL"

	optionTimeToLive = "time_to_live"
)

// Envelope is the transport-ready form of a publish request.
// It is immutable once built and shared read-only across endpoint sends.
type Envelope struct {
	// Message is the JSON object {"default": ..., "<PROVIDER>": "<json>"}.
	Message    string
	Attributes map[string]push.Attribute
	TTL        int64
}

// BuildEnvelope composes every requested provider payload and the TTL attributes.
func BuildEnvelope(req *push.PublishRequest) (*Envelope, error) {
	composers, err := ResolveComposers(req.ProviderList())
	if err != nil {
		return nil, err
	}

	message := map[string]string{"default": req.Default}
	for _, c := range composers {
		payload := c.Compose(req.Alert, req.Data, req.Options, req.IdentityID)
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", c.Provider(), err)
		}
		message[string(c.Provider())] = string(raw)
	}

	raw, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	ttl, err := ResolveTTL(req.Options)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Message:    string(raw),
		Attributes: TTLAttributes(ttl),
		TTL:        ttl,
	}, nil
}

// TTLAttributes returns the three provider TTL attributes set to ttl seconds.
func TTLAttributes(ttl int64) map[string]push.Attribute {
	value := strconv.FormatInt(ttl, 10)
	attrs := make(map[string]push.Attribute, 3)
	for _, key := range []string{AttrAPNSTTL, AttrAPNSSandboxTTL, AttrGCMTTL} {
		attrs[key] = push.Attribute{DataType: "String", StringValue: value}
	}
	return attrs
}

// ResolveTTL reads options.time_to_live as whole seconds, defaulting to push.DefaultTTL.
func ResolveTTL(options push.Options) (int64, error) {
	v, ok := options[optionTimeToLive]
	if !ok || v == nil {
		return push.DefaultTTL, nil
	}

	var ttl int64
	switch t := v.(type) {
	case int:
		ttl = int64(t)
	case int32:
		ttl = int64(t)
	case int64:
		ttl = t
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt64 {
			return 0, fmt.Errorf("%w %v: must be whole seconds", push.ErrInvalidTTL, t)
		}
		ttl = int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w %q: %w", push.ErrInvalidTTL, t.String(), err)
		}
		ttl = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w %q: %w", push.ErrInvalidTTL, t, err)
		}
		ttl = n
	default:
		return 0, fmt.Errorf("%w of type %T", push.ErrInvalidTTL, v)
	}

	// Zero is valid: deliver now or drop.
	if ttl < 0 {
		return 0, fmt.Errorf("%w %d: must not be negative", push.ErrInvalidTTL, ttl)
	}
	return ttl, nil
}
