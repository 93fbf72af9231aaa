package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ticketer/internal/clock"
	"ticketer/internal/models"
)

// TicketService issues tickets and redeems them at the door
type TicketService struct {
	repo     TicketRepository
	qr       *QRCodeService
	storage  StorageService // optional
	mailer   Mailer         // optional
	cutoffs  *CutoffPolicy
	clock    clock.Clock
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewTicketService creates a new ticket service. storage and mailer may be
// nil, in which case QR images are not hosted and no email is sent.
func NewTicketService(
	repo TicketRepository,
	qr *QRCodeService,
	storage StorageService,
	mailer Mailer,
	cutoffs *CutoffPolicy,
	clk clock.Clock,
	logger *logrus.Logger,
) *TicketService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if qr == nil {
		qr = NewQRCodeService()
	}

	return &TicketService{
		repo:     repo,
		qr:       qr,
		storage:  storage,
		mailer:   mailer,
		cutoffs:  cutoffs,
		clock:    clk,
		validate: NewValidator(),
		logger:   logger,
	}
}

// IssueTicket validates the request, persists a new unredeemed ticket and
// emails its QR code to the holder. Image hosting and email delivery are
// best effort; only validation and persistence failures are returned.
func (s *TicketService) IssueTicket(ctx context.Context, req *models.TicketCreateRequest) (*models.Ticket, error) {
	if req == nil {
		return nil, &models.ValidationError{Err: errors.New("empty request")}
	}

	req.Normalize()
	if err := validateStruct(ctx, s.validate, req); err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		ID:          uuid.NewString(),
		HolderName:  req.HolderName,
		Email:       req.Email,
		Phone:       req.Phone,
		EntryCode:   uuid.NewString(),
		PurchasedAt: s.clock.Now(),
		Category:    req.Category,
	}

	png, err := s.qr.Encode(PayloadFor(ticket))
	if err != nil {
		return nil, err
	}

	ticket.QRCodeURL = s.uploadQRCode(ctx, ticket.EntryCode, png)

	if err := s.repo.Create(ctx, ticket); err != nil {
		if ticket.QRCodeURL != "" {
			s.removeQRCode(ctx, ticket.EntryCode)
		}
		if errors.Is(err, models.ErrDuplicateEntry) || errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		return nil, &models.InfrastructureError{Op: "create ticket", Err: err}
	}

	log := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"entry_code": ticket.EntryCode,
		"category":   ticket.Category,
	})
	log.Info("ticket issued")

	s.deliver(ctx, ticket, png, log)

	return ticket, nil
}

func (s *TicketService) uploadQRCode(ctx context.Context, code string, png []byte) string {
	if s.storage == nil {
		return ""
	}

	url, err := s.storage.Upload(ctx, TicketImageKey(code), bytes.NewReader(png), "image/png", int64(len(png)))
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entry_code", code).Warn("failed to upload QR code image")
		return ""
	}

	return url
}

func (s *TicketService) removeQRCode(ctx context.Context, code string) {
	if err := s.storage.Delete(ctx, TicketImageKey(code)); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entry_code", code).Warn("failed to remove orphaned QR code image")
	}
}

func (s *TicketService) deliver(ctx context.Context, ticket *models.Ticket, png []byte, log *logrus.Entry) {
	if s.mailer == nil {
		return
	}

	msg, err := BuildTicketEmail(ticket, png)
	if err != nil {
		log.WithError(err).Error("failed to build ticket email")
		return
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		log.WithError(err).Error("failed to deliver ticket email")
	}
}

// RedeemTicket applies the redemption rule to the ticket with the given
// entry code. The outcome is read from the store, never from the caller:
// the decoded category is only compared with the stored one. Only store
// failures are returned as errors.
func (s *TicketService) RedeemTicket(ctx context.Context, code string, category models.TicketCategory) (*models.RedemptionResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.NewValidationError("entry_code", "is required")
	}

	log := s.logger.WithContext(ctx).WithField("entry_code", code)

	ticket, err := s.repo.GetByEntryCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			log.Info("redemption: unknown entry code")
			return &models.RedemptionResult{Outcome: models.OutcomeNotFound}, nil
		}
		return nil, &models.InfrastructureError{Op: "get ticket", Err: err}
	}

	if category != "" && category != ticket.Category {
		log.WithFields(logrus.Fields{
			"scanned_category": category,
			"stored_category":  ticket.Category,
		}).Warn("redemption: scanned category does not match stored ticket")
	}

	if ticket.Used {
		log.Info("redemption: ticket already used")
		return &models.RedemptionResult{Outcome: models.OutcomeAlreadyUsed, Ticket: ticket}, nil
	}

	now := s.clock.Now()
	if s.cutoffs.Expired(ticket.Category, now) {
		log.WithField("category", ticket.Category).Info("redemption: category cutoff passed")
		return &models.RedemptionResult{Outcome: models.OutcomeExpired, Ticket: ticket}, nil
	}

	next := models.Redeemed(now)
	err = s.repo.CompareAndSetRedemption(ctx, code, models.Unredeemed, next)
	switch {
	case err == nil:
		ticket.Apply(next)
		log.Info("redemption: ticket redeemed")
		return &models.RedemptionResult{Outcome: models.OutcomeSuccess, Ticket: ticket}, nil

	case errors.Is(err, models.ErrPreconditionFailed):
		log.Info("redemption: lost race, ticket already used")
		if current, getErr := s.repo.GetByEntryCode(ctx, code); getErr == nil {
			ticket = current
		}
		return &models.RedemptionResult{Outcome: models.OutcomeAlreadyUsed, Ticket: ticket}, nil

	case errors.Is(err, models.ErrTicketNotFound):
		return &models.RedemptionResult{Outcome: models.OutcomeNotFound}, nil

	default:
		return nil, &models.InfrastructureError{Op: "redeem ticket", Err: err}
	}
}

// RedeemScan decodes a photo of a QR code and redeems the ticket it names
func (s *TicketService) RedeemScan(ctx context.Context, image []byte) (*models.RedemptionResult, error) {
	if len(image) == 0 {
		return nil, models.NewValidationError("image", "is required")
	}

	payload, err := s.qr.Decode(image)
	if err != nil {
		return nil, err
	}

	return s.RedeemTicket(ctx, payload.EntryCode, payload.Category)
}

// ListTickets returns every ticket ordered by purchase date
func (s *TicketService) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	tickets, err := s.repo.List(ctx)
	if err != nil {
		return nil, &models.InfrastructureError{Op: "list tickets", Err: err}
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	return tickets, nil
}

// GetTicket returns the ticket with the given entry code
func (s *TicketService) GetTicket(ctx context.Context, code string) (*models.Ticket, error) {
	ticket, err := s.repo.GetByEntryCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			return nil, err
		}
		return nil, &models.InfrastructureError{Op: "get ticket", Err: err}
	}
	return ticket, nil
}

// TicketQRCode regenerates the QR code PNG of a stored ticket
func (s *TicketService) TicketQRCode(ctx context.Context, code string) ([]byte, error) {
	ticket, err := s.GetTicket(ctx, code)
	if err != nil {
		return nil, err
	}

	png, err := s.qr.Encode(PayloadFor(ticket))
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return png, nil
}
