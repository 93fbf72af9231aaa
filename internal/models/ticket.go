package models

import (
	"strings"
	"time"
)

// TicketCategory classifies a ticket. Some categories carry a cutoff time.
type TicketCategory string

const (
	CategoryGeneral         TicketCategory = "general"
	CategoryDiscountedEarly TicketCategory = "discounted-early"
)

// Ticket represents an issued ticket. EntryCode is the lookup key embedded
// in the QR code; ScannedAt is set exactly when Used is true.
type Ticket struct {
	ID          string         `json:"id" db:"id" dynamodbav:"id"`
	HolderName  string         `json:"holder_name" db:"holder_name" dynamodbav:"holder_name"`
	Email       string         `json:"email" db:"email" dynamodbav:"email"`
	Phone       string         `json:"phone" db:"phone" dynamodbav:"phone"`
	EntryCode   string         `json:"entry_code" db:"entry_code" dynamodbav:"entry_code"`
	PurchasedAt time.Time      `json:"purchase_date" db:"purchased_at" dynamodbav:"purchase_date"`
	Category    TicketCategory `json:"category" db:"category" dynamodbav:"category"`
	Used        bool           `json:"used" db:"used" dynamodbav:"used"`
	ScannedAt   *time.Time     `json:"scanned_at,omitempty" db:"scanned_at" dynamodbav:"scanned_at,omitempty"`
	QRCodeURL   string         `json:"qr_code_url,omitempty" db:"qr_code_url" dynamodbav:"qr_code_url,omitempty"`
}

// RedemptionState is the mutable part of a ticket.
type RedemptionState struct {
	Used      bool
	ScannedAt *time.Time
}

// Unredeemed is the state every ticket starts in.
var Unredeemed = RedemptionState{}

// Redeemed returns the state of a ticket scanned at the given time.
func Redeemed(at time.Time) RedemptionState {
	at = at.UTC()
	return RedemptionState{Used: true, ScannedAt: &at}
}

// State returns the ticket's current redemption state.
func (t *Ticket) State() RedemptionState {
	return RedemptionState{Used: t.Used, ScannedAt: t.ScannedAt}
}

// Apply sets the redemption fields of the ticket.
func (t *Ticket) Apply(s RedemptionState) {
	t.Used = s.Used
	t.ScannedAt = s.ScannedAt
}

// Valid reports whether the state satisfies the used/scanned_at invariant.
func (s RedemptionState) Valid() bool {
	return s.Used == (s.ScannedAt != nil)
}

// TicketCreateRequest represents the data needed to issue a ticket
type TicketCreateRequest struct {
	HolderName string         `json:"holder_name" validate:"required,max=255"`
	Email      string         `json:"email" validate:"required,email,max=255"`
	Phone      string         `json:"phone" validate:"required,max=50"`
	Category   TicketCategory `json:"category" validate:"omitempty,max=64"`
}

// Normalize trims the request fields and applies the default category.
func (req *TicketCreateRequest) Normalize() {
	req.HolderName = strings.TrimSpace(req.HolderName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Category = TicketCategory(strings.TrimSpace(string(req.Category)))
	if req.Category == "" {
		req.Category = CategoryGeneral
	}
}

// RedeemRequest carries the fields decoded from a scanned QR code.
type RedeemRequest struct {
	EntryCode string         `json:"entry_code" validate:"required"`
	Category  TicketCategory `json:"category"`
}
