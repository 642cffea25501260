// Package push contains the public contracts and domain models for composing
// and fanning out multi-provider push notifications.
package push

// Alert carries the user-visible fields (title, body, localization keys and
// provider extras). Callers own it; the core only reads it.
type Alert map[string]any

// Data carries application delivery metadata (org_id, click_action, deeplink, ...).
type Data map[string]any

// Options carries per-provider overrides keyed by provider name and an
// optional "time_to_live" in seconds.
type Options map[string]any

// DefaultTTL is the time-to-live applied when options carry none (one week).
const DefaultTTL int64 = 604800

// Attribute is a typed transport message attribute.
type Attribute struct {
	DataType    string `json:"data_type"`
	StringValue string `json:"string_value"`
}

// PublishRequest is one logical alert. The same request is sent to every
// endpoint of a fan-out.
type PublishRequest struct {
	Alert     Alert      `json:"alert"`
	Data      Data       `json:"data,omitempty"`
	Options   Options    `json:"options,omitempty"`
	Providers []Provider `json:"providers,omitempty"`
	// Default is shown to transport protocols the envelope does not enumerate.
	Default    string   `json:"default,omitempty"`
	Save       *bool    `json:"save,omitempty"`
	IdentityID string   `json:"identity_id,omitempty"`
	Segments   []string `json:"segments,omitempty"`
	Marketing  bool     `json:"marketing,omitempty"`
}

// ShouldSave reports whether an audit record is requested. Defaults to true.
func (r *PublishRequest) ShouldSave() bool {
	return r.Save == nil || *r.Save
}

// ProviderList returns the requested providers, or all of them when none were named.
func (r *PublishRequest) ProviderList() []Provider {
	if len(r.Providers) == 0 {
		return AllProviders()
	}
	return r.Providers
}

// PublishCommand is the serialized form of a multi-endpoint publish, as
// received over Pub/Sub or HTTP.
type PublishCommand struct {
	Endpoints []string `json:"endpoints"`
	PublishRequest
}

// SegmentCounts aggregates segment tags into buckets.
type SegmentCounts struct {
	Favorite int `json:"favorite" firestore:"favorite"`
	Language int `json:"language" firestore:"language"`
	Default  int `json:"default" firestore:"default"`
}

// Total is the number of tags counted.
func (c SegmentCounts) Total() int {
	return c.Favorite + c.Language + c.Default
}

// AuditRecord is the durable, write-once log entry of a user-visible notification.
// It is keyed by (OrgID, Timestamp) in the store.
type AuditRecord struct {
	OrgID       string
	Timestamp   int64
	Body        string
	Title       string
	Endpoints   []string
	Marketing   bool
	ClickAction string
	LinkType    string
	LinkURL     string
	IdentityID  string
	Segments    []string
	// SegmentCounts is nil when the call carried no segments.
	SegmentCounts *SegmentCounts
}

// Receipt is the outcome of one endpoint of a fan-out.
type Receipt struct {
	Endpoint  string `json:"endpoint"`
	MessageID string `json:"message_id,omitempty"`
	Err       error  `json:"-"`
}

// BatchResult summarizes a multi-endpoint publish.
type BatchResult struct {
	DispatchID string    `json:"dispatch_id"`
	Receipts   []Receipt `json:"receipts"`
	Audited    bool      `json:"audited"`
}

// Succeeded counts endpoints the transport accepted.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Receipts {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts endpoints that failed.
func (b *BatchResult) Failed() int {
	return len(b.Receipts) - b.Succeeded()
}
