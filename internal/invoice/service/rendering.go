package service

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/chatlyhq/chatly/internal/billing/ledger"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

func renderInvoicePDF(invoice *invoicedomain.Invoice) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.Number, props.Text{Top: 0}),
			text.New("Date of issue: "+formatDate(invoice.IssuedAt), props.Text{Top: 4}),
			text.New("Date due: "+formatDate(invoice.DueAt), props.Text{Top: 8}),
			text.New("Service period: "+formatPeriod(invoice.PeriodStart, invoice.PeriodEnd), props.Text{Top: 12}),
			text.New("Status: "+string(invoice.Status), props.Text{Top: 16}),
		),
		col.New(6),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	m.AddRow(12,
		text.NewCol(6, "Subscription "+string(invoice.Kind), props.Text{Size: 9}),
		text.NewCol(2, "1", props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, money(invoice.Currency, invoice.SubtotalCents), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, money(invoice.Currency, invoice.SubtotalCents), props.Text{Size: 9, Align: align.Right}),
	)

	if invoice.ChatOverage > 0 {
		m.AddRow(12,
			text.NewCol(6, fmt.Sprintf("Chat overage (%d of %d included, %d used)",
				invoice.ChatOverage, invoice.ChatIncluded, invoice.ChatUsed), props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", invoice.ChatOverage), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, money(invoice.Currency, invoice.UnitOveragePriceCents), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, money(invoice.Currency, invoice.OverageCents), props.Text{Size: 9, Align: align.Right}),
		)
	}

	if invoice.CreditCents > 0 {
		m.AddRow(10,
			col.New(8),
			text.NewCol(2, "Credit", props.Text{Size: 9}),
			text.NewCol(2, "-"+money(invoice.Currency, invoice.CreditCents), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, money(invoice.Currency, invoice.TotalCents), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func money(currency string, cents int64) string {
	return fmt.Sprintf("%s %s", currency, ledger.FormatCents(cents))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func formatPeriod(start, end *time.Time) string {
	return formatDate(start) + " to " + formatDate(end)
}
