package services

import (
	"context"

	"ticketer/internal/models"
)

// TicketRepository is the persistence contract for tickets. Implementations
// must make CompareAndSetRedemption atomic with respect to concurrent calls.
type TicketRepository interface {
	GetByEntryCode(ctx context.Context, code string) (*models.Ticket, error)
	Create(ctx context.Context, ticket *models.Ticket) error
	CompareAndSetRedemption(ctx context.Context, code string, expected, next models.RedemptionState) error
	List(ctx context.Context) ([]*models.Ticket, error)
}

// UserRepository interface for operator account data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
}

// CredentialIssuer issues and verifies bearer credentials
type CredentialIssuer interface {
	IssueCredential(userID string) (string, error)
	VerifyCredential(token string) (string, error)
}

// TicketServiceInterface defines the interface for ticket services
type TicketServiceInterface interface {
	IssueTicket(ctx context.Context, req *models.TicketCreateRequest) (*models.Ticket, error)
	RedeemTicket(ctx context.Context, code string, category models.TicketCategory) (*models.RedemptionResult, error)
	RedeemScan(ctx context.Context, image []byte) (*models.RedemptionResult, error)
	ListTickets(ctx context.Context) ([]*models.Ticket, error)
	GetTicket(ctx context.Context, code string) (*models.Ticket, error)
	TicketQRCode(ctx context.Context, code string) ([]byte, error)
}

// AuthServiceInterface defines the interface for authentication services
type AuthServiceInterface interface {
	Register(ctx context.Context, req *models.UserCreateRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*LoginResult, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	VerifyCredential(token string) (string, error)
}
