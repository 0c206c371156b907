package ledger

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Upgrading a $30 plan with 200 of 400 chats unused to a $50 plan must credit
/// exactly half of the current price: total 35.00.
func TestPlanChangeTotals_ProrationCredit(t *testing.T) {
	current := &SubscriptionView{
		Active:                true,
		Quantity:              1,
		Plan:                  PlanView{Currency: "USD", PriceCents: 3000, IncludedChats: 400},
		IncludedChatsResolved: 400,
		ChatsUsed:             200,
	}
	target := PlanView{Currency: "USD", PriceCents: 5000}

	totals := PlanChangeTotals(current, target, 1)

	assert.Equal(t, int64(5000), totals.SubtotalCents)
	assert.Equal(t, int64(1500), totals.CreditCents)
	assert.Equal(t, int64(3500), totals.TotalCents)
	assert.Equal(t, "35.00", FormatCents(totals.TotalCents))
}

func TestPlanChangeTotals_NoCreditAcrossCurrencies(t *testing.T) {
	current := &SubscriptionView{
		Active:                true,
		Quantity:              1,
		Plan:                  PlanView{Currency: "EUR", PriceCents: 3000},
		IncludedChatsResolved: 400,
		ChatsUsed:             0,
	}
	totals := PlanChangeTotals(current, PlanView{Currency: "USD", PriceCents: 5000}, 1)
	assert.Zero(t, totals.CreditCents)
	assert.Equal(t, int64(5000), totals.TotalCents)
}

func TestPlanChangeTotals_InactiveCurrentGetsNoCredit(t *testing.T) {
	current := &SubscriptionView{
		Active:                false,
		Quantity:              1,
		Plan:                  PlanView{Currency: "USD", PriceCents: 3000},
		IncludedChatsResolved: 400,
		ChatsUsed:             0,
	}
	totals := PlanChangeTotals(current, PlanView{Currency: "USD", PriceCents: 5000}, 1)
	assert.Zero(t, totals.CreditCents)
}

func TestPlanChangeTotals_CreditCappedAtSubtotal(t *testing.T) {
	current := &SubscriptionView{
		Active:                true,
		Quantity:              1,
		Plan:                  PlanView{Currency: "USD", PriceCents: 100000},
		IncludedChatsResolved: 100,
		ChatsUsed:             0,
	}
	totals := PlanChangeTotals(current, PlanView{Currency: "USD", PriceCents: 500}, 1)
	assert.Equal(t, int64(500), totals.CreditCents)
	assert.Zero(t, totals.TotalCents)
}

func TestPlanChangeTotals_QuantityFloorsAtOne(t *testing.T) {
	totals := PlanChangeTotals(nil, PlanView{Currency: "USD", PriceCents: 2500}, 0)
	assert.Equal(t, int64(2500), totals.SubtotalCents)
}

/// Plan price $30, 400 included, 500 used: 100 overage chats at the unit price.
func TestRenewalForPeriod_Overage(t *testing.T) {
	totals := RenewalForPeriod(SubscriptionView{
		Quantity:              1,
		Plan:                  PlanView{Currency: "USD", PriceCents: 3000},
		IncludedChatsResolved: 400,
		ChatsUsed:             500,
		OverageCentsResolved:  10,
	})

	assert.Equal(t, int64(3000), totals.SubtotalCents)
	assert.Equal(t, int64(100), totals.ChatOverage)
	assert.Equal(t, int64(1000), totals.OverageCents)
	assert.Equal(t, int64(4000), totals.TotalCents)
	assert.Equal(t, int64(400), totals.ChatIncluded)
	assert.Equal(t, int64(500), totals.ChatUsed)
}

func TestRenewalForPeriod_UnderIncludedHasNoOverage(t *testing.T) {
	totals := RenewalForPeriod(SubscriptionView{
		Quantity:              2,
		Plan:                  PlanView{PriceCents: 3000},
		IncludedChatsResolved: 800,
		ChatsUsed:             120,
		OverageCentsResolved:  10,
	})
	assert.Equal(t, int64(6000), totals.SubtotalCents)
	assert.Zero(t, totals.ChatOverage)
	assert.Equal(t, int64(6000), totals.TotalCents)
}

func TestInvoiceNumber_Format(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^INV-20260314-[A-Z0-9]{8}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := InvoiceNumber(at)
		require.Regexp(t, pattern, n)
		seen[n] = true
	}
	// Random suffixes should essentially never collide in 50 draws.
	assert.Greater(t, len(seen), 45)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "12.30", FormatCents(1230))
	assert.Equal(t, "-3.01", FormatCents(-301))
}
