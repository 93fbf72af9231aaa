package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ticketer/internal/database"
	"ticketer/internal/models"
)

const ticketColumns = `id, holder_name, email, phone, entry_code, purchased_at, category, used, scanned_at, qr_code_url`

// TicketRepository stores tickets in PostgreSQL or SQLite
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket. A reused ID or entry code yields ErrDuplicateEntry.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if !ticket.State().Valid() {
		return fmt.Errorf("%w: used and scanned_at disagree", models.ErrInvalidInput)
	}

	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES (:id, :holder_name, :email, :phone, :entry_code, :purchased_at, :category, :used, :scanned_at, :qr_code_url)`

	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: ticket %s", models.ErrDuplicateEntry, ticket.EntryCode)
		}
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

// GetByEntryCode retrieves a ticket by its entry code
func (r *TicketRepository) GetByEntryCode(ctx context.Context, code string) (*models.Ticket, error) {
	query := r.db.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE entry_code = ?`)

	ticket := &models.Ticket{}
	if err := r.db.GetContext(ctx, ticket, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return normalizeTicket(ticket), nil
}

// CompareAndSetRedemption moves the ticket from expected to next in a
// single conditional UPDATE. If the stored state no longer matches
// expected, nothing is written and ErrPreconditionFailed is returned.
func (r *TicketRepository) CompareAndSetRedemption(ctx context.Context, code string, expected, next models.RedemptionState) error {
	if !next.Valid() {
		return fmt.Errorf("%w: used and scanned_at disagree", models.ErrInvalidInput)
	}

	query := r.db.Rebind(`UPDATE tickets SET used = ?, scanned_at = ? WHERE entry_code = ? AND used = ?`)

	result, err := r.db.ExecContext(ctx, query, next.Used, next.ScannedAt, code, expected.Used)
	if err != nil {
		return fmt.Errorf("failed to update ticket redemption: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		exists, err := r.exists(ctx, code)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrTicketNotFound
		}
		return models.ErrPreconditionFailed
	}

	return nil
}

// List returns every ticket ordered by purchase date
func (r *TicketRepository) List(ctx context.Context) ([]*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY purchased_at, entry_code`

	var tickets []*models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	for _, ticket := range tickets {
		normalizeTicket(ticket)
	}

	return tickets, nil
}

func (r *TicketRepository) exists(ctx context.Context, code string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM tickets WHERE entry_code = ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, code); err != nil {
		return false, fmt.Errorf("failed to check ticket existence: %w", err)
	}

	return count > 0, nil
}

// normalizeTicket converts driver-returned timestamps to UTC.
func normalizeTicket(ticket *models.Ticket) *models.Ticket {
	ticket.PurchasedAt = ticket.PurchasedAt.UTC()
	if ticket.ScannedAt != nil {
		at := ticket.ScannedAt.UTC()
		ticket.ScannedAt = &at
	}
	return ticket
}
