package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketer/internal/models"
)

// fakeDynamoDB keeps items in memory and evaluates the condition
// expressions the repositories issue.
type fakeDynamoDB struct {
	mu       sync.Mutex
	keyAttr  string
	items    map[string]map[string]types.AttributeValue
	pageSize int
	err      error

	lastGet *dynamodb.GetItemInput
}

func newFakeDynamoDB(keyAttr string) *fakeDynamoDB {
	return &fakeDynamoDB{
		keyAttr:  keyAttr,
		items:    make(map[string]map[string]types.AttributeValue),
		pageSize: 2,
	}
}

func (f *fakeDynamoDB) keyOf(item map[string]types.AttributeValue) string {
	if s, ok := item[f.keyAttr].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	f.lastGet = params
	item, ok := f.items[f.keyOf(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	key := f.keyOf(params.Item)
	if _, exists := f.items[key]; exists && params.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[key] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	item, ok := f.items[f.keyOf(params.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	expected := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberBOOL).Value
	current, _ := item["used"].(*types.AttributeValueMemberBOOL)
	if current == nil || current.Value != expected {
		return nil, &types.ConditionalCheckFailedException{
			Message: aws.String("The conditional request failed"),
			Item:    copyItem(item),
		}
	}

	item["used"] = params.ExpressionAttributeValues[":next"]
	if scannedAt, ok := params.ExpressionAttributeValues[":scanned_at"]; ok {
		item["scanned_at"] = scannedAt
	} else {
		delete(item, "scanned_at")
	}

	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		last := f.keyOf(params.ExclusiveStartKey)
		start = sort.SearchStrings(keys, last) + 1
	}

	out := &dynamodb.ScanOutput{}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, copyItem(f.items[k]))
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			f.keyAttr: &types.AttributeValueMemberS{Value: keys[end-1]},
		}
	}

	return out, nil
}

func TestDynamoTicketRepository(t *testing.T) {
	runTicketStoreTests(t, func(t *testing.T) ticketStore {
		return NewDynamoTicketRepository(newFakeDynamoDB("entry_code"), "assistants")
	})
}

func TestDynamoTicketRepository_ConsistentRead(t *testing.T) {
	ctx := context.Background()
	client := newFakeDynamoDB("entry_code")
	repo := NewDynamoTicketRepository(client, "assistants")

	ticket := newTestTicket(models.CategoryDiscountedEarly, time.Date(2025, 7, 12, 18, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, ticket))

	got, err := repo.GetByEntryCode(ctx, ticket.EntryCode)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDiscountedEarly, got.Category)

	require.NotNil(t, client.lastGet)
	assert.Equal(t, "assistants", aws.ToString(client.lastGet.TableName))
	assert.True(t, aws.ToBool(client.lastGet.ConsistentRead))
}

func TestDynamoTicketRepository_ClientError(t *testing.T) {
	ctx := context.Background()
	client := newFakeDynamoDB("entry_code")
	client.err = errors.New("RequestError: send request failed")
	repo := NewDynamoTicketRepository(client, "assistants")

	_, err := repo.GetByEntryCode(ctx, uuid.NewString())
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrTicketNotFound)

	err = repo.CompareAndSetRedemption(ctx, uuid.NewString(), models.Unredeemed, models.Redeemed(time.Now()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrPreconditionFailed)
}

func TestDynamoUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDynamoUserRepository(newFakeDynamoDB("username"), "users")
	createdAt := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	for _, name := range []string{"taquilla", "puerta", "admin"} {
		require.NoError(t, repo.Create(ctx, &models.User{ID: uuid.NewString(), Username: name, PasswordHash: "hash-" + name, CreatedAt: createdAt}))
	}

	user, err := repo.GetByUsername(ctx, "puerta")
	require.NoError(t, err)
	assert.Equal(t, "hash-puerta", user.PasswordHash)
	assert.True(t, createdAt.Equal(user.CreatedAt))

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	err = repo.Create(ctx, &models.User{ID: uuid.NewString(), Username: "admin", PasswordHash: "x"})
	assert.ErrorIs(t, err, models.ErrDuplicateEntry)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"admin", "puerta", "taquilla"}, []string{users[0].Username, users[1].Username, users[2].Username})
}
