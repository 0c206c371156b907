// Package ledger contains the pure billing arithmetic: plan-change proration,
// renewal totals and invoice numbering. All money amounts are integer cents;
// callers format for display with FormatCents. The package performs no I/O.
package ledger

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// PlanView is the snapshot of a plan the ledger needs for pricing.
type PlanView struct {
	Currency              string
	PriceCents            int64
	IncludedChats         int64
	OverageChatPriceCents int64
}

// SubscriptionView is the snapshot of a subscription at calculation time.
type SubscriptionView struct {
	Active                bool
	Quantity              int64
	Plan                  PlanView
	IncludedChatsResolved int64
	ChatsUsed             int64
	OverageCentsResolved  int64
}

// Totals is the outcome of a plan change calculation.
type Totals struct {
	SubtotalCents int64
	CreditCents   int64
	OverageCents  int64
	TotalCents    int64
}

// RenewalTotals carries renewal amounts plus the usage snapshot frozen into
// the invoice.
type RenewalTotals struct {
	SubtotalCents         int64
	OverageCents          int64
	TotalCents            int64
	ChatIncluded          int64
	ChatUsed              int64
	ChatOverage           int64
	UnitOveragePriceCents int64
}

// PlanChangeTotals prices a checkout onto target at quantity, crediting the
// unused included-chat allowance of the current subscription. Credit is
// granted only when the current subscription is active, shares a currency
// with the target plan and still has unused allowance; it never exceeds the
// subtotal.
func PlanChangeTotals(current *SubscriptionView, target PlanView, quantity int64) Totals {
	if quantity < 1 {
		quantity = 1
	}
	subtotal := target.PriceCents * quantity

	var credit int64
	if current != nil && current.Active && strings.EqualFold(current.Plan.Currency, target.Currency) {
		included := current.IncludedChatsResolved
		remaining := included - current.ChatsUsed
		if included > 0 && remaining > 0 {
			currentPrice := current.Plan.PriceCents * maxInt64(current.Quantity, 1)
			credit = currentPrice * remaining / included
			if credit > subtotal {
				credit = subtotal
			}
		}
	}

	total := subtotal - credit
	if total < 0 {
		total = 0
	}

	return Totals{
		SubtotalCents: subtotal,
		CreditCents:   credit,
		TotalCents:    total,
	}
}

// RenewalForPeriod prices the renewal of sub for the elapsed period: base
// price plus per-chat overage beyond the included allowance.
func RenewalForPeriod(sub SubscriptionView) RenewalTotals {
	quantity := maxInt64(sub.Quantity, 1)
	subtotal := sub.Plan.PriceCents * quantity

	included := sub.IncludedChatsResolved
	used := sub.ChatsUsed
	overageChats := used - included
	if overageChats < 0 {
		overageChats = 0
	}

	unitPrice := sub.OverageCentsResolved
	overage := overageChats * unitPrice

	return RenewalTotals{
		SubtotalCents:         subtotal,
		OverageCents:          overage,
		TotalCents:            subtotal + overage,
		ChatIncluded:          included,
		ChatUsed:              used,
		ChatOverage:           overageChats,
		UnitOveragePriceCents: unitPrice,
	}
}

const invoiceNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// InvoiceNumber produces INV-{YYYYMMDD}-{8 uppercase alphanumerics}. Global
// uniqueness is the caller's responsibility (retry on collision).
func InvoiceNumber(at time.Time) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// time-derived suffix to keep the invariant of always returning.
		nano := at.UnixNano()
		for i := range buf {
			buf[i] = invoiceNumberAlphabet[nano%int64(len(invoiceNumberAlphabet))]
			nano /= 7
		}
	}
	for i := range buf {
		buf[i] = invoiceNumberAlphabet[int(buf[i])%len(invoiceNumberAlphabet)]
	}
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("20060102"), string(buf))
}

// FormatCents renders integer cents as a decimal string with two fraction
// digits, e.g. 3550 -> "35.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
