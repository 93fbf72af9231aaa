package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketer/internal/clock"
	"ticketer/internal/logging"
	"ticketer/internal/models"
)

type ticketFixture struct {
	svc     *TicketService
	repo    *mockTicketRepository
	mailer  *recordingMailer
	storage *memoryStorage
	clock   *clock.Manual
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()

	cutoffs, err := NewCutoffPolicy(map[string]string{"discounted-early": "23:00"}, "UTC")
	require.NoError(t, err)

	f := &ticketFixture{
		repo:    newMockTicketRepository(),
		mailer:  &recordingMailer{},
		storage: newMemoryStorage(),
		clock:   clock.NewManual(time.Date(2025, 7, 12, 20, 0, 0, 0, time.UTC)),
	}
	f.svc = NewTicketService(f.repo, NewQRCodeService(), f.storage, f.mailer, cutoffs, f.clock, logging.Discard())
	return f
}

func (f *ticketFixture) issue(t *testing.T, category models.TicketCategory) *models.Ticket {
	t.Helper()
	ticket, err := f.svc.IssueTicket(context.Background(), &models.TicketCreateRequest{
		HolderName: "Ana Torres",
		Email:      "ana@example.com",
		Phone:      "+34600000000",
		Category:   category,
	})
	require.NoError(t, err)
	return ticket
}

func TestTicketService_IssueTicket(t *testing.T) {
	f := newTicketFixture(t)

	ticket, err := f.svc.IssueTicket(context.Background(), &models.TicketCreateRequest{
		HolderName: "  Ana Torres ",
		Email:      "Ana@Example.com",
		Phone:      "+34600000000",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.ID)
	assert.NotEmpty(t, ticket.EntryCode)
	assert.Equal(t, "Ana Torres", ticket.HolderName)
	assert.Equal(t, "ana@example.com", ticket.Email)
	assert.Equal(t, models.CategoryGeneral, ticket.Category)
	assert.False(t, ticket.Used)
	assert.Nil(t, ticket.ScannedAt)
	assert.Equal(t, f.clock.Now(), ticket.PurchasedAt)
	assert.Equal(t, "https://cdn.test/"+TicketImageKey(ticket.EntryCode), ticket.QRCodeURL)

	stored, err := f.repo.GetByEntryCode(context.Background(), ticket.EntryCode)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, stored.ID)
	assert.False(t, stored.Used)

	exists, err := f.storage.Exists(context.Background(), TicketImageKey(ticket.EntryCode))
	require.NoError(t, err)
	assert.True(t, exists)

	sent := f.mailer.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Equal(t, "Ana Torres", sent[0].ToName)
	require.Len(t, sent[0].Attachments, 1)
	assert.True(t, sent[0].Attachments[0].Inline)
	assert.Equal(t, qrContentID, sent[0].Attachments[0].ContentID)
	assert.Contains(t, sent[0].HTML, "cid:"+qrContentID)
}

func TestTicketService_IssueTicket_DistinctEntryCodes(t *testing.T) {
	f := newTicketFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		ticket := f.issue(t, models.CategoryGeneral)
		assert.False(t, seen[ticket.EntryCode], "entry code issued twice")
		seen[ticket.EntryCode] = true
	}

	tickets, err := f.svc.ListTickets(context.Background())
	require.NoError(t, err)
	assert.Len(t, tickets, 5)
}

func TestTicketService_IssueTicket_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request *models.TicketCreateRequest
		field   string
	}{
		{
			name:    "missing holder name",
			request: &models.TicketCreateRequest{Email: "a@example.com", Phone: "1"},
			field:   "holder_name",
		},
		{
			name:    "malformed email",
			request: &models.TicketCreateRequest{HolderName: "A", Email: "not-an-email", Phone: "1"},
			field:   "email",
		},
		{
			name:    "missing phone",
			request: &models.TicketCreateRequest{HolderName: "A", Email: "a@example.com"},
			field:   "phone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTicketFixture(t)

			_, err := f.svc.IssueTicket(context.Background(), tt.request)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidInput)

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)

			tickets, _ := f.repo.List(context.Background())
			assert.Empty(t, tickets)
			assert.Empty(t, f.mailer.sent())
		})
	}

	t.Run("nil request", func(t *testing.T) {
		f := newTicketFixture(t)
		_, err := f.svc.IssueTicket(context.Background(), nil)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestTicketService_IssueTicket_MailerFailureKeepsTicket(t *testing.T) {
	f := newTicketFixture(t)
	f.mailer.err = errors.New("smtp unavailable")

	ticket := f.issue(t, models.CategoryGeneral)

	stored, err := f.repo.GetByEntryCode(context.Background(), ticket.EntryCode)
	require.NoError(t, err)
	assert.Equal(t, ticket.EntryCode, stored.EntryCode)
	assert.Len(t, f.mailer.sent(), 1)
}

func TestTicketService_IssueTicket_UploadFailure(t *testing.T) {
	f := newTicketFixture(t)
	f.storage.uploadErr = errors.New("bucket unreachable")

	ticket := f.issue(t, models.CategoryGeneral)

	assert.Empty(t, ticket.QRCodeURL)
	_, err := f.repo.GetByEntryCode(context.Background(), ticket.EntryCode)
	assert.NoError(t, err)
	assert.Len(t, f.mailer.sent(), 1)
}

func TestTicketService_IssueTicket_StoreFailure(t *testing.T) {
	f := newTicketFixture(t)
	f.repo.shouldFailOps["Create"] = true

	_, err := f.svc.IssueTicket(context.Background(), &models.TicketCreateRequest{
		HolderName: "Ana Torres",
		Email:      "ana@example.com",
		Phone:      "+34600000000",
	})
	require.Error(t, err)
	assert.True(t, models.IsRetryable(err))
	assert.Empty(t, f.mailer.sent())

	require.Len(t, f.storage.deleted, 1)
	exists, _ := f.storage.Exists(context.Background(), f.storage.deleted[0])
	assert.False(t, exists)
}

func TestTicketService_IssueTicket_WithoutOptionalServices(t *testing.T) {
	svc := NewTicketService(newMockTicketRepository(), nil, nil, nil, nil, nil, logging.Discard())

	ticket, err := svc.IssueTicket(context.Background(), &models.TicketCreateRequest{
		HolderName: "Ana Torres",
		Email:      "ana@example.com",
		Phone:      "+34600000000",
	})
	require.NoError(t, err)
	assert.Empty(t, ticket.QRCodeURL)
}

func TestTicketService_QRCodeRoundTrip(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.issue(t, models.CategoryDiscountedEarly)

	sent := f.mailer.sent()
	require.Len(t, sent, 1)

	payload, err := NewQRCodeService().Decode(sent[0].Attachments[0].Content)
	require.NoError(t, err)
	assert.Equal(t, ticket.EntryCode, payload.EntryCode)
	assert.Equal(t, models.CategoryDiscountedEarly, payload.Category)
	assert.Equal(t, "Ana Torres", payload.HolderName)

	png, err := f.svc.TicketQRCode(context.Background(), ticket.EntryCode)
	require.NoError(t, err)
	payload, err = NewQRCodeService().Decode(png)
	require.NoError(t, err)
	assert.Equal(t, ticket.EntryCode, payload.EntryCode)
}

func TestTicketService_RedeemTicket(t *testing.T) {
	t.Run("general ticket redeems once", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := f.issue(t, models.CategoryGeneral)
		f.clock.Advance(time.Hour)

		result, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryGeneral)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSuccess, result.Outcome)
		require.NotNil(t, result.Ticket)
		assert.True(t, result.Ticket.Used)
		require.NotNil(t, result.Ticket.ScannedAt)
		assert.Equal(t, f.clock.Now(), *result.Ticket.ScannedAt)
		assert.Equal(t, models.Unredeemed, f.repo.lastExpected)

		stored, err := f.repo.GetByEntryCode(context.Background(), ticket.EntryCode)
		require.NoError(t, err)
		assert.True(t, stored.Used)
		require.NotNil(t, stored.ScannedAt)
		firstScan := *stored.ScannedAt

		f.clock.Advance(time.Minute)
		result, err = f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryGeneral)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadyUsed, result.Outcome)

		stored, err = f.repo.GetByEntryCode(context.Background(), ticket.EntryCode)
		require.NoError(t, err)
		assert.Equal(t, firstScan, *stored.ScannedAt)
	})

	t.Run("discounted ticket after cutoff is expired", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := f.issue(t, models.CategoryDiscountedEarly)
		f.clock.Set(time.Date(2025, 7, 12, 23, 30, 0, 0, time.UTC))

		result, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryDiscountedEarly)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeExpired, result.Outcome)

		stored, err := f.repo.GetByEntryCode(context.Background(), ticket.EntryCode)
		require.NoError(t, err)
		assert.False(t, stored.Used)
		assert.Nil(t, stored.ScannedAt)
		assert.Zero(t, f.repo.casCalls)
	})

	t.Run("discounted ticket before cutoff redeems", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := f.issue(t, models.CategoryDiscountedEarly)
		f.clock.Set(time.Date(2025, 7, 12, 22, 59, 0, 0, time.UTC))

		result, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryDiscountedEarly)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	})

	t.Run("used ticket reports already used even after cutoff", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := f.issue(t, models.CategoryDiscountedEarly)

		result, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, "")
		require.NoError(t, err)
		require.Equal(t, models.OutcomeSuccess, result.Outcome)

		f.clock.Set(time.Date(2025, 7, 12, 23, 30, 0, 0, time.UTC))
		result, err = f.svc.RedeemTicket(context.Background(), ticket.EntryCode, "")
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadyUsed, result.Outcome)
	})

	t.Run("unknown code", func(t *testing.T) {
		f := newTicketFixture(t)

		result, err := f.svc.RedeemTicket(context.Background(), "does-not-exist", models.CategoryGeneral)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeNotFound, result.Outcome)
		assert.Nil(t, result.Ticket)
	})

	t.Run("empty code", func(t *testing.T) {
		f := newTicketFixture(t)

		_, err := f.svc.RedeemTicket(context.Background(), "  ", models.CategoryGeneral)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("stored category wins over scanned category", func(t *testing.T) {
		f := newTicketFixture(t)
		discounted := f.issue(t, models.CategoryDiscountedEarly)
		general := f.issue(t, models.CategoryGeneral)
		f.clock.Set(time.Date(2025, 7, 12, 23, 30, 0, 0, time.UTC))

		result, err := f.svc.RedeemTicket(context.Background(), discounted.EntryCode, models.CategoryGeneral)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeExpired, result.Outcome)

		result, err = f.svc.RedeemTicket(context.Background(), general.EntryCode, models.CategoryDiscountedEarly)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	})

	t.Run("lost race reports already used", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := f.issue(t, models.CategoryGeneral)
		f.repo.casConflict = true

		result, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryGeneral)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadyUsed, result.Outcome)
	})

	t.Run("store failure on lookup", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := f.issue(t, models.CategoryGeneral)
		f.repo.shouldFailOps["GetByEntryCode"] = true

		result, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryGeneral)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, models.IsRetryable(err))
	})

	t.Run("store failure on update leaves ticket unused", func(t *testing.T) {
		f := newTicketFixture(t)
		ticket := f.issue(t, models.CategoryGeneral)
		f.repo.shouldFailOps["CompareAndSetRedemption"] = true

		_, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryGeneral)
		require.Error(t, err)
		assert.True(t, models.IsRetryable(err))

		stored, err := f.repo.GetByEntryCode(context.Background(), ticket.EntryCode)
		require.NoError(t, err)
		assert.False(t, stored.Used)
	})
}

func TestTicketService_RedeemTicket_Concurrent(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.issue(t, models.CategoryGeneral)

	const scanners = 20
	outcomes := make(chan models.RedemptionOutcome, scanners)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := f.svc.RedeemTicket(context.Background(), ticket.EntryCode, models.CategoryGeneral)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			outcomes <- result.Outcome
		}()
	}
	close(start)
	wg.Wait()
	close(outcomes)

	counts := make(map[models.RedemptionOutcome]int)
	for outcome := range outcomes {
		counts[outcome]++
	}

	assert.Equal(t, 1, counts[models.OutcomeSuccess])
	assert.Equal(t, scanners-1, counts[models.OutcomeAlreadyUsed])
}

func TestTicketService_RedeemScan(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.issue(t, models.CategoryGeneral)

	png, err := f.svc.TicketQRCode(context.Background(), ticket.EntryCode)
	require.NoError(t, err)

	result, err := f.svc.RedeemScan(context.Background(), png)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, ticket.EntryCode, result.Ticket.EntryCode)

	result, err = f.svc.RedeemScan(context.Background(), png)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyUsed, result.Outcome)

	_, err = f.svc.RedeemScan(context.Background(), []byte("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrQRDecode)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.RedeemScan(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestTicketService_GetAndList(t *testing.T) {
	f := newTicketFixture(t)

	tickets, err := f.svc.ListTickets(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tickets)
	assert.Empty(t, tickets)

	first := f.issue(t, models.CategoryGeneral)
	f.clock.Advance(time.Minute)
	second := f.issue(t, models.CategoryDiscountedEarly)

	tickets, err = f.svc.ListTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, first.EntryCode, tickets[0].EntryCode)
	assert.Equal(t, second.EntryCode, tickets[1].EntryCode)

	got, err := f.svc.GetTicket(context.Background(), second.EntryCode)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = f.svc.GetTicket(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrTicketNotFound)

	_, err = f.svc.TicketQRCode(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrTicketNotFound)

	f.repo.shouldFailOps["List"] = true
	_, err = f.svc.ListTickets(context.Background())
	assert.True(t, models.IsRetryable(err))
}
