package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoDBConfig struct {
	Region   string
	Endpoint string // Optional, e.g. http://localhost:8000 for DynamoDB Local
}

// NewDynamoDBClient builds a DynamoDB client from the default AWS credential
// chain. When an endpoint is set and no credentials are found, static dummy
// credentials are used so DynamoDB Local works out of the box.
func NewDynamoDBClient(ctx context.Context, cfg DynamoDBConfig) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.Endpoint != "" {
		if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
			awsCfg.Credentials = credentials.NewStaticCredentialsProvider("local", "local", "")
		}
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return client, nil
}

// TableCreator is the subset of the DynamoDB API needed to bootstrap tables.
type TableCreator interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// EnsureDynamoDBTables creates the tickets table (keyed by entry_code) and
// the users table (keyed by username) if they do not exist yet.
func EnsureDynamoDBTables(ctx context.Context, client TableCreator, ticketsTable, usersTable string) error {
	tables := []struct {
		name string
		key  string
	}{
		{ticketsTable, "entry_code"},
		{usersTable, "username"},
	}

	for _, table := range tables {
		created, err := ensureTable(ctx, client, table.name, table.key)
		if err != nil {
			return err
		}
		if !created {
			continue
		}

		waiter := dynamodb.NewTableExistsWaiter(client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table.name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("failed waiting for table %s: %w", table.name, err)
		}
	}

	return nil
}

func ensureTable(ctx context.Context, client TableCreator, name, key string) (bool, error) {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(key), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(key), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create table %s: %w", name, err)
	}

	return true, nil
}
