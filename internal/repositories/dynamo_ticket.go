package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ticketer/internal/models"
)

// DynamoDBAPI is the part of the DynamoDB client the repositories use.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoTicketRepository stores tickets in a DynamoDB table keyed by entry_code
type DynamoTicketRepository struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoTicketRepository creates a ticket repository backed by DynamoDB
func NewDynamoTicketRepository(client DynamoDBAPI, table string) *DynamoTicketRepository {
	return &DynamoTicketRepository{client: client, table: table}
}

func (r *DynamoTicketRepository) key(code string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"entry_code": &types.AttributeValueMemberS{Value: code},
	}
}

// Create puts the ticket unless one with the same entry code exists
func (r *DynamoTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if !ticket.State().Valid() {
		return fmt.Errorf("%w: used and scanned_at disagree", models.ErrInvalidInput)
	}

	item, err := attributevalue.MarshalMap(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(entry_code)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: ticket %s", models.ErrDuplicateEntry, ticket.EntryCode)
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

// GetByEntryCode reads the ticket with a strongly consistent read
func (r *DynamoTicketRepository) GetByEntryCode(ctx context.Context, code string) (*models.Ticket, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(code),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, models.ErrTicketNotFound
	}

	ticket := &models.Ticket{}
	if err := attributevalue.UnmarshalMap(out.Item, ticket); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket: %w", err)
	}

	return ticket, nil
}

// CompareAndSetRedemption updates used/scanned_at only while the stored used
// flag still equals expected.Used.
func (r *DynamoTicketRepository) CompareAndSetRedemption(ctx context.Context, code string, expected, next models.RedemptionState) error {
	if !next.Valid() {
		return fmt.Errorf("%w: used and scanned_at disagree", models.ErrInvalidInput)
	}

	values := map[string]types.AttributeValue{
		":expected": &types.AttributeValueMemberBOOL{Value: expected.Used},
		":next":     &types.AttributeValueMemberBOOL{Value: next.Used},
	}

	update := "SET used = :next REMOVE scanned_at"
	if next.ScannedAt != nil {
		scannedAt, err := attributevalue.Marshal(next.ScannedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to marshal scanned_at: %w", err)
		}
		values[":scanned_at"] = scannedAt
		update = "SET used = :next, scanned_at = :scanned_at"
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.table),
		Key:                                 r.key(code),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String("attribute_exists(entry_code) AND used = :expected"),
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return models.ErrTicketNotFound
			}
			return models.ErrPreconditionFailed
		}
		return fmt.Errorf("failed to update ticket redemption: %w", err)
	}

	return nil
}

// List scans the whole table and returns tickets ordered by purchase date
func (r *DynamoTicketRepository) List(ctx context.Context) ([]*models.Ticket, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.table),
	})

	var tickets []*models.Ticket
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tickets: %w", err)
		}

		var batch []*models.Ticket
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tickets: %w", err)
		}
		tickets = append(tickets, batch...)
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].PurchasedAt.Equal(tickets[j].PurchasedAt) {
			return tickets[i].EntryCode < tickets[j].EntryCode
		}
		return tickets[i].PurchasedAt.Before(tickets[j].PurchasedAt)
	})

	return tickets, nil
}
