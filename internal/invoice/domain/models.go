// Package domain contains billing invoice persistence models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusIssued  Status = "issued"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	StatusVoid    Status = "void"
	StatusFailed  Status = "failed"
)

// IsFinal reports whether the invoice can no longer be rewritten by the
// renewal job.
func (s Status) IsFinal() bool {
	return s == StatusPaid || s == StatusVoid || s == StatusFailed
}

type Kind string

const (
	KindRenewal    Kind = "renewal"
	KindPlanChange Kind = "plan_change"
)

// Invoice freezes resolved totals and the chat usage snapshot at issuance
// time; amounts are never recomputed retroactively.
type Invoice struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id,string"`
	CompanyID      snowflake.ID `gorm:"not null;index" json:"company_id,string"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id,string"`
	PlanID         snowflake.ID `gorm:"not null" json:"plan_id,string"`
	Number         string       `gorm:"type:text;not null;uniqueIndex" json:"number"`
	Kind           Kind         `gorm:"type:text;not null" json:"kind"`
	Status         Status       `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency       string       `gorm:"type:text;not null" json:"currency"`

	SubtotalCents int64 `gorm:"not null" json:"subtotal_cents"`
	CreditCents   int64 `gorm:"not null;default:0" json:"credit_cents"`
	OverageCents  int64 `gorm:"not null;default:0" json:"overage_cents"`
	TotalCents    int64 `gorm:"not null" json:"total_cents"`

	ChatIncluded          int64 `gorm:"not null;default:0" json:"chat_included"`
	ChatUsed              int64 `gorm:"not null;default:0" json:"chat_used"`
	ChatOverage           int64 `gorm:"not null;default:0" json:"chat_overage"`
	UnitOveragePriceCents int64 `gorm:"not null;default:0" json:"unit_overage_price_cents"`

	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `gorm:"index" json:"period_end,omitempty"`

	IssuedAt *time.Time        `json:"issued_at,omitempty"`
	DueAt    *time.Time        `json:"due_at,omitempty"`
	PaidAt   *time.Time        `json:"paid_at,omitempty"`
	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }
