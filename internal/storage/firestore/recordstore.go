package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// DefaultCollection mirrors the DynamoDB table name so both backends read alike.
const DefaultCollection = "CustomSnsMessages"

// RecordStore implements push.RecordStore using Google Cloud Firestore.
type RecordStore struct {
	client     *firestore.Client
	collection string
}

func NewRecordStore(client *firestore.Client, collection string) *RecordStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &RecordStore{client: client, collection: collection}
}

// auditDocument is the internal DB representation.
type auditDocument struct {
	OrgID         string              `firestore:"org_id"`
	Timestamp     int64               `firestore:"timestamp"`
	Body          string              `firestore:"body"`
	Title         string              `firestore:"title"`
	Endpoints     []string            `firestore:"endpoints"`
	Marketing     bool                `firestore:"marketing"`
	ClickAction   string              `firestore:"click_action,omitempty"`
	LinkType      string              `firestore:"link_type,omitempty"`
	LinkURL       string              `firestore:"link_url,omitempty"`
	IdentityID    string              `firestore:"identity_id,omitempty"`
	Segments      []string            `firestore:"segments,omitempty"`
	SegmentCounts *push.SegmentCounts `firestore:"segments_count,omitempty"`
}

// PutRecord creates the record under orgs/{org_id}/{collection}/{id}.
// Create (not Set) keeps records write-once.
func (s *RecordStore) PutRecord(ctx context.Context, record *push.AuditRecord) error {
	doc := auditDocument{
		OrgID:         record.OrgID,
		Timestamp:     record.Timestamp,
		Body:          record.Body,
		Title:         record.Title,
		Endpoints:     record.Endpoints,
		Marketing:     record.Marketing,
		ClickAction:   record.ClickAction,
		LinkType:      record.LinkType,
		LinkURL:       record.LinkURL,
		IdentityID:    record.IdentityID,
		Segments:      record.Segments,
		SegmentCounts: record.SegmentCounts,
	}

	if _, err := s.recordRef(record).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore create record: %w: %w", push.ErrPersistence, err)
	}
	return nil
}

// --- Helpers ---

func (s *RecordStore) recordRef(record *push.AuditRecord) *firestore.DocumentRef {
	orgID := record.OrgID
	if orgID == "" {
		orgID = "_none"
	}
	return s.client.Collection("orgs").Doc(orgID).Collection(s.collection).Doc(recordID(record))
}

// recordID is derived from the record key and content, so a replayed
// Pub/Sub delivery cannot create a second copy.
func recordID(r *push.AuditRecord) string {
	sum := sha256.New()
	fmt.Fprintf(sum, "%s|%d|%s|%s|", r.OrgID, r.Timestamp, r.Title, r.Body)
	for _, e := range r.Endpoints {
		fmt.Fprintf(sum, "%s,", e)
	}
	return hex.EncodeToString(sum.Sum(nil))
}
