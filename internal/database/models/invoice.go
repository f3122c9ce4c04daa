package models

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

type Invoice struct {
	Base
	CompanyID   uuid.UUID     `gorm:"type:uuid;index;uniqueIndex:idx_invoices_company_number;not null" json:"company_id"`
	ClientID    uuid.UUID     `gorm:"type:uuid;index;not null" json:"client_id"`
	ProjectID   *uuid.UUID    `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Number      string        `gorm:"uniqueIndex:idx_invoices_company_number;not null" json:"number"`
	Status      InvoiceStatus `gorm:"default:'draft'" json:"status"`
	AmountCents int64         `gorm:"not null" json:"amount_cents"`
	Currency    string        `gorm:"default:'EUR'" json:"currency"`
	DueAt       time.Time     `json:"due_at"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`

	// Relationships
	Company *Company `gorm:"foreignKey:CompanyID" json:"-"`
	Client  *Client  `gorm:"foreignKey:ClientID" json:"-"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Invoice) TableName() string {
	return "invoices"
}

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusDeclined QuoteStatus = "declined"
)

type Quote struct {
	Base
	CompanyID   uuid.UUID   `gorm:"type:uuid;index;uniqueIndex:idx_quotes_company_number;not null" json:"company_id"`
	ClientID    uuid.UUID   `gorm:"type:uuid;index;not null" json:"client_id"`
	ProjectID   *uuid.UUID  `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Number      string      `gorm:"uniqueIndex:idx_quotes_company_number;not null" json:"number"`
	Status      QuoteStatus `gorm:"default:'draft'" json:"status"`
	AmountCents int64       `gorm:"not null" json:"amount_cents"`
	Currency    string      `gorm:"default:'EUR'" json:"currency"`
	ValidUntil  time.Time   `json:"valid_until"`
	DecidedAt   *time.Time  `json:"decided_at,omitempty"`

	// Relationships
	Company *Company `gorm:"foreignKey:CompanyID" json:"-"`
	Client  *Client  `gorm:"foreignKey:ClientID" json:"-"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Quote) TableName() string {
	return "quotes"
}
