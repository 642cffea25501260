// --- File: internal/storage/dynamodb/recordstore.go ---
// Package dynamodb implements the audit RecordStore on an AWS DynamoDB table.
package dynamodb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// DefaultTable is the audit table name.
const DefaultTable = "CustomSnsMessages"

// PutItemClient defines the subset of the DynamoDB client we use.
type PutItemClient interface {
	PutItem(ctx context.Context, params *awsddb.PutItemInput, optFns ...func(*awsddb.Options)) (*awsddb.PutItemOutput, error)
}

// RecordStore writes audit records as typed DynamoDB items.
type RecordStore struct {
	client PutItemClient
	table  string
}

// New builds a DynamoDB client for region. endpoint overrides the service URL
// when non-empty (e.g. DynamoDB Local).
func New(ctx context.Context, region, table, endpoint string) (*RecordStore, error) {
	if region == "" {
		return nil, push.ErrMissingRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := awsddb.NewFromConfig(cfg, func(o *awsddb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewRecordStore(client, table), nil
}

func NewRecordStore(client PutItemClient, table string) *RecordStore {
	if table == "" {
		table = DefaultTable
	}
	return &RecordStore{client: client, table: table}
}

func (s *RecordStore) PutRecord(ctx context.Context, record *push.AuditRecord) error {
	_, err := s.client.PutItem(ctx, &awsddb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      Item(record),
	})
	if err != nil {
		return fmt.Errorf("dynamodb put item: %w: %w", push.ErrPersistence, err)
	}
	return nil
}

// Item maps a record to its typed attributes. Optional fields are omitted
// when empty; string sets are only written when non-empty.
func Item(r *push.AuditRecord) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"org_id":    &types.AttributeValueMemberS{Value: r.OrgID},
		"timestamp": number(r.Timestamp),
		"body":      &types.AttributeValueMemberS{Value: r.Body},
		"title":     &types.AttributeValueMemberS{Value: r.Title},
		"marketing": &types.AttributeValueMemberBOOL{Value: r.Marketing},
	}
	if len(r.Endpoints) > 0 {
		item["endpoints"] = &types.AttributeValueMemberSS{Value: r.Endpoints}
	}

	optional := map[string]string{
		"click_action": r.ClickAction,
		"link_type":    r.LinkType,
		"link_url":     r.LinkURL,
		"identity_id":  r.IdentityID,
	}
	for name, value := range optional {
		if value != "" {
			item[name] = &types.AttributeValueMemberS{Value: value}
		}
	}

	if len(r.Segments) > 0 {
		item["segments"] = &types.AttributeValueMemberSS{Value: r.Segments}
	}
	if c := r.SegmentCounts; c != nil {
		item["segments_count"] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"favorite": number(int64(c.Favorite)),
			"language": number(int64(c.Language)),
			"default":  number(int64(c.Default)),
		}}
	}
	return item
}

func number(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
