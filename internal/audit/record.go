package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// Input is everything a dispatch call knows that the record is derived from.
type Input struct {
	Alert      push.Alert
	Data       push.Data
	Endpoints  []string
	IdentityID string
	Segments   []string
	Marketing  bool
}

// BuildRecord derives the audit record. It returns false when the alert has no
// body, in which case nothing should be written.
func BuildRecord(in Input, now time.Time) (*push.AuditRecord, bool) {
	body := stringField(in.Alert, "body")
	if body == "" {
		return nil, false
	}
	title := stringField(in.Alert, "title")
	if title == "" {
		title = " "
	}

	record := &push.AuditRecord{
		OrgID:       stringField(in.Data, "org_id"),
		Timestamp:   now.Unix(),
		Body:        body,
		Title:       title,
		Endpoints:   Dedupe(in.Endpoints),
		Marketing:   in.Marketing,
		ClickAction: stringField(in.Data, "click_action"),
		IdentityID:  in.IdentityID,
	}

	if linkType, linkURL, ok := deeplink(in.Data); ok {
		record.LinkType = linkType
		record.LinkURL = linkURL
	}

	if len(in.Segments) > 0 {
		record.Segments = Dedupe(in.Segments)
		counts := CountSegments(in.Segments)
		record.SegmentCounts = &counts
	}

	return record, true
}

// Dedupe drops empty and repeated values, keeping first-seen order.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// deeplink reads data.deeplink.data; only "url" links are recorded.
func deeplink(data push.Data) (string, string, bool) {
	link, ok := data["deeplink"].(map[string]any)
	if !ok {
		return "", "", false
	}
	linkData, ok := link["data"].(map[string]any)
	if !ok {
		return "", "", false
	}
	if stringField(linkData, "type") != "url" {
		return "", "", false
	}
	return "url", stringField(linkData, "url"), true
}

// stringField reads a scalar as a string; org ids often arrive as JSON numbers.
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int64, int32, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}
