// Package audit derives the durable record of a user-visible notification.
package audit

import (
	"strings"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

const (
	segmentFavorite = "fav"
	segmentLanguage = "lang"
)

// CountSegments buckets tags by the prefix before their first underscore:
// "fav_*" is a favorite, "lang_*" a language, anything else default.
func CountSegments(segments []string) push.SegmentCounts {
	var counts push.SegmentCounts
	for _, tag := range segments {
		prefix, _, found := strings.Cut(tag, "_")
		switch {
		case found && prefix == segmentFavorite:
			counts.Favorite++
		case found && prefix == segmentLanguage:
			counts.Language++
		default:
			counts.Default++
		}
	}
	return counts
}
