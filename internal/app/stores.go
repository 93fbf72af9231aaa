package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"

	"ticketer/internal/config"
	"ticketer/internal/database"
	"ticketer/internal/repositories"
	"ticketer/internal/services"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Stores holds the repositories of the configured backend
type Stores struct {
	Backend string
	Tickets services.TicketRepository
	Users   services.UserRepository

	// SQL is nil for the dynamodb backend, Dynamo for the SQL ones.
	SQL    *database.DB
	Dynamo *dynamodb.Client

	ticketsTable string
}

// OpenStores connects to the backend selected by STORE_BACKEND
func OpenStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Stores, error) {
	backend := cfg.Store.Backend
	if backend == "" {
		backend = BackendSQLite
	}

	switch backend {
	case BackendSQLite, BackendPostgres:
		db, err := database.NewConnection(SQLConfig(cfg))
		if err != nil {
			return nil, err
		}
		logger.WithField("backend", backend).Info("Database connection established")
		return &Stores{
			Backend: backend,
			Tickets: repositories.NewTicketRepository(db.DB),
			Users:   repositories.NewUserRepository(db.DB),
			SQL:     db,
		}, nil

	case BackendDynamoDB:
		client, err := database.NewDynamoDBClient(ctx, database.DynamoDBConfig{
			Region:   cfg.DynamoDB.Region,
			Endpoint: cfg.DynamoDB.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"tickets_table": cfg.DynamoDB.TicketsTable,
			"users_table":   cfg.DynamoDB.UsersTable,
		}).Info("DynamoDB client initialized")
		return &Stores{
			Backend:      backend,
			Tickets:      repositories.NewDynamoTicketRepository(client, cfg.DynamoDB.TicketsTable),
			Users:        repositories.NewDynamoUserRepository(client, cfg.DynamoDB.UsersTable),
			Dynamo:       client,
			ticketsTable: cfg.DynamoDB.TicketsTable,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// SQLConfig maps the application config onto a database connection config
func SQLConfig(cfg *config.Config) database.Config {
	if cfg.Store.Backend == BackendPostgres {
		return database.Config{
			Driver:   database.DriverPostgres,
			URL:      cfg.Database.URL,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
	}
	return database.Config{Driver: database.DriverSQLite, Path: cfg.Database.SQLitePath}
}

// Prepare brings the schema up to date: SQL migrations or DynamoDB tables.
func (s *Stores) Prepare(ctx context.Context, cfg *config.Config) error {
	if s.SQL != nil {
		return s.SQL.RunMigrations()
	}
	return database.EnsureDynamoDBTables(ctx, s.Dynamo, cfg.DynamoDB.TicketsTable, cfg.DynamoDB.UsersTable)
}

// Ping reports whether the backend is reachable
func (s *Stores) Ping(ctx context.Context) error {
	if s.SQL != nil {
		return s.SQL.PingContext(ctx)
	}
	_, err := s.Dynamo.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.ticketsTable)})
	return err
}

func (s *Stores) Close() error {
	if s.SQL != nil {
		return s.SQL.Close()
	}
	return nil
}
