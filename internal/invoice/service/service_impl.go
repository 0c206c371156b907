package service

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/billing/ledger"
	"github.com/chatlyhq/chatly/internal/clock"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/chatlyhq/chatly/pkg/db"
	"github.com/chatlyhq/chatly/pkg/db/option"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	invoiceRepo repository.Repository[invoicedomain.Invoice]
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID: p.GenID,
		clock: p.Clock,

		invoiceRepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
	}
}

func (s *Service) ListByCompany(ctx context.Context, companyID snowflake.ID) ([]invoicedomain.Invoice, error) {
	rows, err := s.invoiceRepo.Find(ctx,
		&invoicedomain.Invoice{CompanyID: companyID},
		option.WithOrder("created_at DESC, id DESC"),
	)
	if err != nil {
		return nil, err
	}
	invoices := make([]invoicedomain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, *row)
	}
	return invoices, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.invoiceRepo.FindOne(ctx, &invoicedomain.Invoice{ID: id})
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) Pay(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status.IsFinal() {
		return nil, invoicedomain.ErrInvoiceFinal
	}

	now := s.clock.Now()
	if err := s.invoiceRepo.Update(ctx, invoice.ID.String(), map[string]any{
		"status":     invoicedomain.StatusPaid,
		"paid_at":    now,
		"updated_at": now,
	}); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// UpsertRenewal implements domain.Service.
func (s *Service) UpsertRenewal(
	ctx context.Context,
	sub *subscriptiondomain.CompanySubscription,
	periodStart, periodEnd time.Time,
	totals ledger.RenewalTotals,
	currency string,
) (*invoicedomain.Invoice, error) {
	now := s.clock.Now()

	existing, err := s.invoiceRepo.FindOne(ctx,
		&invoicedomain.Invoice{
			SubscriptionID: sub.ID,
			Kind:           invoicedomain.KindRenewal,
		},
		option.WithWhere("period_end = ?", periodEnd),
	)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.Status.IsFinal() {
			return existing, nil
		}
		if err := s.invoiceRepo.Update(ctx, existing.ID.String(), map[string]any{
			"subtotal_cents":           totals.SubtotalCents,
			"overage_cents":            totals.OverageCents,
			"total_cents":              totals.TotalCents,
			"chat_included":            totals.ChatIncluded,
			"chat_used":                totals.ChatUsed,
			"chat_overage":             totals.ChatOverage,
			"unit_overage_price_cents": totals.UnitOveragePriceCents,
			"updated_at":               now,
		}); err != nil {
			return nil, err
		}
		return s.GetByID(ctx, existing.ID)
	}

	dueAt := periodEnd
	invoice := &invoicedomain.Invoice{
		CompanyID:             sub.CompanyID,
		SubscriptionID:        sub.ID,
		PlanID:                sub.PlanID,
		Kind:                  invoicedomain.KindRenewal,
		Status:                invoicedomain.StatusIssued,
		Currency:              currency,
		SubtotalCents:         totals.SubtotalCents,
		OverageCents:          totals.OverageCents,
		TotalCents:            totals.TotalCents,
		ChatIncluded:          totals.ChatIncluded,
		ChatUsed:              totals.ChatUsed,
		ChatOverage:           totals.ChatOverage,
		UnitOveragePriceCents: totals.UnitOveragePriceCents,
		PeriodStart:           &periodStart,
		PeriodEnd:             &periodEnd,
		IssuedAt:              &now,
		DueAt:                 &dueAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		invoice.ID = s.genID.Generate()
		invoice.Number = ledger.InvoiceNumber(now)
		lastErr = s.invoiceRepo.Create(ctx, invoice)
		if lastErr == nil {
			return invoice, nil
		}
		if !db.IsDuplicateKeyErr(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (s *Service) RenderPDF(ctx context.Context, id snowflake.ID) (io.Reader, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return renderInvoicePDF(invoice)
}
