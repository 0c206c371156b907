// Package domain contains the company subscription model and its entitlement
// arithmetic.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
)

// Status represents lifecycle states for a company subscription.
type Status string

const (
	StatusInactive       Status = "inactive"
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusPastDue        Status = "past_due"
	StatusUnpaid         Status = "unpaid"
	StatusExpired        Status = "expired"
	StatusCanceled       Status = "canceled"
)

// ValidStatuses enumerates every admissible status for manual edits.
var ValidStatuses = []Status{
	StatusInactive, StatusPendingPayment, StatusActive,
	StatusPastDue, StatusUnpaid, StatusExpired, StatusCanceled,
}

// CompanySubscription is one-to-one with a company. Never hard-deleted.
type CompanySubscription struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id,string"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex" json:"company_id,string"`
	PlanID    snowflake.ID `gorm:"not null;index" json:"plan_id,string"`
	Status    Status       `gorm:"type:text;not null;default:'inactive'" json:"status"`
	Quantity  int64        `gorm:"not null;default:0" json:"quantity"`

	BillingCycleDays       int        `gorm:"not null;default:30" json:"billing_cycle_days"`
	ChatCountCurrentPeriod int64      `gorm:"not null;default:0" json:"chat_count_current_period"`
	ChatPeriodStartedAt    *time.Time `json:"chat_period_started_at,omitempty"`
	ChatPeriodEndsAt       *time.Time `json:"chat_period_ends_at,omitempty"`

	StartsAt     *time.Time `json:"starts_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RenewalDueAt *time.Time `json:"renewal_due_at,omitempty"`

	// Per-feature overrides take precedence over plan base x quantity.
	AssistantLimitOverride         *int64 `json:"assistant_limit_override,omitempty"`
	IntegrationsPerChannelOverride *int64 `json:"integrations_per_channel_override,omitempty"`
	IncludedChatsOverride          *int64 `json:"included_chats_override,omitempty"`
	OverageChatPriceCentsOverride  *int64 `json:"overage_chat_price_override,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CompanySubscription) TableName() string { return "company_subscriptions" }

// IsActiveAt reports whether the subscription entitles service at t:
// status active, positive quantity, and t inside [starts_at, expires_at).
func (s *CompanySubscription) IsActiveAt(t time.Time) bool {
	if s == nil || s.Status != StatusActive || s.Quantity <= 0 {
		return false
	}
	if s.StartsAt != nil && t.Before(*s.StartsAt) {
		return false
	}
	if s.ExpiresAt != nil && !t.Before(*s.ExpiresAt) {
		return false
	}
	return true
}

func resolve(override *int64, base, quantity int64) int64 {
	if override != nil {
		if *override < 0 {
			return 0
		}
		return *override
	}
	if quantity < 0 {
		quantity = 0
	}
	v := base * quantity
	if v < 0 {
		return 0
	}
	return v
}

// ResolvedAssistantLimit is the assistant-count entitlement.
func (s *CompanySubscription) ResolvedAssistantLimit(plan *plandomain.Plan) int64 {
	return resolve(s.AssistantLimitOverride, plan.AssistantLimit, s.Quantity)
}

// ResolvedIntegrationsLimit is the per-channel integration entitlement.
func (s *CompanySubscription) ResolvedIntegrationsLimit(plan *plandomain.Plan) int64 {
	return resolve(s.IntegrationsPerChannelOverride, plan.IntegrationsPerChannelLimit, s.Quantity)
}

// ResolvedIncludedChats is the metered chat quota for the current period.
func (s *CompanySubscription) ResolvedIncludedChats(plan *plandomain.Plan) int64 {
	return resolve(s.IncludedChatsOverride, plan.IncludedChats, s.Quantity)
}

// ResolvedOverageChatPriceCents is the per-chat price beyond the quota.
// Unlike the count entitlements it does not scale with quantity.
func (s *CompanySubscription) ResolvedOverageChatPriceCents(plan *plandomain.Plan) int64 {
	if s.OverageChatPriceCentsOverride != nil {
		if *s.OverageChatPriceCentsOverride < 0 {
			return 0
		}
		return *s.OverageChatPriceCentsOverride
	}
	return plan.OverageChatPriceCents
}
