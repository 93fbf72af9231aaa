package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"ticketer/internal/models"
	"ticketer/internal/services"
)

const maxScanBytes = 10 << 20

// TicketHandler serves ticket issuance, lookup and redemption
type TicketHandler struct {
	tickets services.TicketServiceInterface
	logger  *logrus.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(tickets services.TicketServiceInterface, logger *logrus.Logger) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		logger:  logger,
	}
}

// Routes mounts the ticket endpoints
func (h *TicketHandler) Routes(r chi.Router) {
	r.Post("/tickets", h.IssueTicket)
	r.Get("/tickets", h.ListTickets)
	r.Get("/assistants", h.ListTickets)
	r.Post("/tickets/redeem", h.RedeemTicket)
	r.Post("/tickets/scan", h.RedeemScan)
	r.Get("/tickets/{code}", h.GetTicket)
	r.Get("/tickets/{code}/qr", h.TicketQRCode)
	r.Patch("/tickets/{code}", h.RedeemByPath)
}

// IssueTicket handles POST /tickets
func (h *TicketHandler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var req models.TicketCreateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ticket, err := h.tickets.IssueTicket(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, ticket)
}

// ListTickets handles GET /tickets and GET /assistants
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.ListTickets(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tickets)
}

// GetTicket handles GET /tickets/{code}
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.tickets.GetTicket(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// TicketQRCode handles GET /tickets/{code}/qr
func (h *TicketHandler) TicketQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.tickets.TicketQRCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// RedeemTicket handles POST /tickets/redeem with the fields decoded by the
// scanner: {"entry_code": "...", "category": "..."}
func (h *TicketHandler) RedeemTicket(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.redeem(w, r, req)
}

// RedeemByPath handles PATCH /tickets/{code}. The body may carry the
// scanned category.
func (h *TicketHandler) RedeemByPath(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.EntryCode = chi.URLParam(r, "code")

	h.redeem(w, r, req)
}

func (h *TicketHandler) redeem(w http.ResponseWriter, r *http.Request, req models.RedeemRequest) {
	result, err := h.tickets.RedeemTicket(r.Context(), req.EntryCode, req.Category)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, statusForOutcome(result.Outcome), result)
}

// RedeemScan handles POST /tickets/scan. The photo is sent either as the
// multipart field "image" or as the raw request body.
func (h *TicketHandler) RedeemScan(w http.ResponseWriter, r *http.Request) {
	image, err := readScanImage(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.tickets.RedeemScan(r.Context(), image)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, statusForOutcome(result.Outcome), result)
}

func readScanImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScanBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, tooLargeOr(err)
		}
		return data, nil
	}

	if err := r.ParseMultipartForm(maxScanBytes); err != nil {
		return nil, tooLargeOr(err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, models.NewValidationError("image", "is required")
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, &models.ValidationError{Fields: map[string]string{"image": "could not be read"}, Err: err}
	}

	return buf.Bytes(), nil
}

func tooLargeOr(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return models.NewValidationError("image", "must be at most 10 MB")
	}
	return &models.ValidationError{Fields: map[string]string{"image": "could not be read"}, Err: err}
}
