package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/billing/ledger"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
)

type Service interface {
	ListByCompany(ctx context.Context, companyID snowflake.ID) ([]Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)

	// Pay marks an issued/overdue invoice paid. Final invoices reject.
	Pay(ctx context.Context, id snowflake.ID) (*Invoice, error)

	// UpsertRenewal issues (or refreshes) the renewal invoice for the given
	// period. A non-final invoice for the same subscription+period is
	// updated in place so re-running the nightly job never duplicates.
	UpsertRenewal(ctx context.Context, sub *subscriptiondomain.CompanySubscription, periodStart, periodEnd time.Time, totals ledger.RenewalTotals, currency string) (*Invoice, error)

	// RenderPDF produces the printable invoice document.
	RenderPDF(ctx context.Context, id snowflake.ID) (io.Reader, error)
}

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrInvoiceFinal    = errors.New("invoice_already_final")
)
