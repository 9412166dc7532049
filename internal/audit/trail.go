// Package audit keeps an append-only trail of appointment status changes.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// Entry is one recorded transition. Version is the appointment version
// the transition produced, so (AppointmentID, Version) is unique.
type Entry struct {
	AppointmentID string `dynamodbav:"appointmentId" json:"appointment_id"`
	Version       int    `dynamodbav:"version" json:"version"`
	Action        string `dynamodbav:"action" json:"action"`
	From          string `dynamodbav:"fromStatus,omitempty" json:"from,omitempty"`
	To            string `dynamodbav:"toStatus" json:"to"`
	ActorID       string `dynamodbav:"actorId" json:"actor_id"`
	Reason        string `dynamodbav:"reason,omitempty" json:"reason,omitempty"`
	At            string `dynamodbav:"at" json:"at"`
}

// Trail records and replays transitions.
type Trail interface {
	Record(ctx context.Context, e Entry) error
	History(ctx context.Context, appointmentID string) ([]Entry, error)
}

// NewEntry stamps an entry at the given time.
func NewEntry(appointmentID string, version int, action, from, to, actorID, reason string, at time.Time) Entry {
	return Entry{
		AppointmentID: appointmentID,
		Version:       version,
		Action:        action,
		From:          from,
		To:            to,
		ActorID:       actorID,
		Reason:        reason,
		At:            at.UTC().Format(time.RFC3339Nano),
	}
}

// MemoryTrail keeps entries in process.
type MemoryTrail struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{entries: make(map[string][]Entry)}
}

func (t *MemoryTrail) Record(_ context.Context, e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.entries[e.AppointmentID] {
		if existing.Version == e.Version {
			return nil
		}
	}
	t.entries[e.AppointmentID] = append(t.entries[e.AppointmentID], e)
	return nil
}

func (t *MemoryTrail) History(_ context.Context, appointmentID string) ([]Entry, error) {
	t.mu.RLock()
	out := append([]Entry(nil), t.entries[appointmentID]...)
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoTrail stores entries in a table keyed by appointmentId (hash)
// and version (range).
type DynamoTrail struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewDynamoTrail builds a trail backed by the provided DynamoDB client.
func NewDynamoTrail(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoTrail {
	if client == nil {
		panic("audit: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("audit: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoTrail{client: client, tableName: tableName, logger: logger}
}

// Record writes e once; a replay of the same version is ignored.
func (t *DynamoTrail) Record(ctx context.Context, e Entry) error {
	if e.AppointmentID == "" {
		return errors.New("audit: appointment id required")
	}
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal entry: %w", err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(appointmentId)"),
	})
	if err != nil {
		var exists *types.ConditionalCheckFailedException
		if errors.As(err, &exists) {
			t.logger.Debug("audit entry already recorded", "appointment_id", e.AppointmentID, "version", e.Version)
			return nil
		}
		return fmt.Errorf("audit: failed to persist entry: %w", err)
	}
	return nil
}

// History returns entries in version order, following pagination.
func (t *DynamoTrail) History(ctx context.Context, appointmentID string) ([]Entry, error) {
	if appointmentID == "" {
		return nil, errors.New("audit: appointment id required")
	}
	var (
		out   []Entry
		start map[string]types.AttributeValue
	)
	for {
		resp, err := t.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(t.tableName),
			KeyConditionExpression: aws.String("appointmentId = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id": &types.AttributeValueMemberS{Value: appointmentID},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("audit: failed to query history: %w", err)
		}
		var page []Entry
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &page); err != nil {
			return nil, fmt.Errorf("audit: failed to unmarshal history: %w", err)
		}
		out = append(out, page...)
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = resp.LastEvaluatedKey
	}
}
