package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// CheckoutRequest moves a company onto a plan with proration against the
// current subscription.
type CheckoutRequest struct {
	CompanyID snowflake.ID `json:"company_id,string"`
	PlanCode  string       `json:"plan_code"`
	Quantity  int64        `json:"quantity"`
}

// CheckoutResult reports the totals charged and the invoice issued.
type CheckoutResult struct {
	Subscription  *CompanySubscription `json:"subscription"`
	InvoiceID     snowflake.ID         `json:"invoice_id,string"`
	InvoiceNumber string               `json:"invoice_number"`
	SubtotalCents int64                `json:"subtotal_cents"`
	CreditCents   int64                `json:"credit_cents"`
	TotalCents    int64                `json:"total_cents"`
}

// UpdateRequest is the manual admin edit surface.
type UpdateRequest struct {
	Status   *Status `json:"status,omitempty"`
	Quantity *int64  `json:"quantity,omitempty"`
	PlanCode *string `json:"plan_code,omitempty"`
}

type Service interface {
	// EnsureCurrent is an idempotent get-or-create keyed by company id. A
	// created subscription starts on the default plan, inactive, quantity 0.
	EnsureCurrent(ctx context.Context, companyID snowflake.ID) (*CompanySubscription, error)

	GetByCompany(ctx context.Context, companyID snowflake.ID) (*CompanySubscription, error)

	// AssistantLimit, IntegrationsLimit and IncludedChats resolve the
	// entitlement with the referenced plan loaded.
	AssistantLimit(ctx context.Context, sub *CompanySubscription) (int64, error)
	IntegrationsLimit(ctx context.Context, sub *CompanySubscription) (int64, error)
	IncludedChats(ctx context.Context, sub *CompanySubscription) (int64, error)

	// SyncAssistantAccess reconciles assistant activation with the current
	// entitlement. Run after any subscription mutation.
	SyncAssistantAccess(ctx context.Context, companyID snowflake.ID) error

	// IncrementChatUsage atomically bumps the period usage counter.
	IncrementChatUsage(ctx context.Context, companyID snowflake.ID, n int64) error

	// SynchronizeBillingPeriods rolls the usage period forward when elapsed
	// and resets the counter. Idempotent within a period.
	SynchronizeBillingPeriods(ctx context.Context, sub *CompanySubscription) (*CompanySubscription, error)

	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Deactivate(ctx context.Context, companyID snowflake.ID) error
	Update(ctx context.Context, companyID snowflake.ID, req UpdateRequest) (*CompanySubscription, error)
}

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrSubscriptionInactive = errors.New("subscription_inactive")
)
