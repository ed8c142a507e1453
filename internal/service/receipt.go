package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridemeter/internal/clock"
	"ridemeter/internal/domain"
	"ridemeter/internal/money"
)

// ReceiptService builds ledger summaries.
type ReceiptService struct {
	clock clock.Clock
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(clk clock.Clock) *ReceiptService {
	return &ReceiptService{clock: clk}
}

// Summarize totals records per kind. Kinds without records are reported
// with zero totals so the receipt always has the same shape.
func (s *ReceiptService) Summarize(driverID, currency string, records []domain.BillingRecord) domain.LedgerSummary {
	summary := domain.LedgerSummary{
		ID:        uuid.New().String(),
		DriverID:  driverID,
		Currency:  currency,
		Total:     money.Zero(),
		CreatedAt: s.clock.Now().UTC(),
	}

	totals := make(map[domain.BillingSessionKind]*domain.KindTotal, len(domain.BillingKinds))
	for _, kind := range domain.BillingKinds {
		summary.Kinds = append(summary.Kinds, domain.KindTotal{Kind: kind, Amount: money.Zero()})
	}
	for i := range summary.Kinds {
		totals[summary.Kinds[i].Kind] = &summary.Kinds[i]
	}

	for _, rec := range records {
		t, ok := totals[rec.Kind]
		if !ok {
			continue
		}
		t.Count++
		t.ChargedSeconds += rec.ChargedSeconds
		t.Amount = t.Amount.Add(rec.Amount)

		summary.Count++
		summary.ChargedSeconds += rec.ChargedSeconds
		summary.Total = summary.Total.Add(rec.Amount)

		if summary.FirstStartedAt == 0 || rec.StartedAt < summary.FirstStartedAt {
			summary.FirstStartedAt = rec.StartedAt
		}
		summary.LastEndedAt = max(summary.LastEndedAt, rec.EndedAt)
	}

	return summary
}

// FormatReceipt formats the summary as plain text (for email/print).
func (s *ReceiptService) FormatReceipt(summary domain.LedgerSummary) string {
	var b strings.Builder

	b.WriteString("=====================================\n")
	b.WriteString("        METERED TIME RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Receipt ID: %s\n", summary.ID)
	fmt.Fprintf(&b, "Driver ID:  %s\n", summary.DriverID)
	fmt.Fprintf(&b, "Date:       %s\n", summary.CreatedAt.Format("Jan 02, 2006 3:04 PM"))
	if summary.Count > 0 {
		fmt.Fprintf(&b, "Period:     %s - %s\n", formatMillis(summary.FirstStartedAt), formatMillis(summary.LastEndedAt))
	}

	b.WriteString("\nBREAKDOWN\n")
	b.WriteString("-------------------------------------\n")
	for _, t := range summary.Kinds {
		fmt.Fprintf(&b, "%-10s x%-3d %8s  %10s %s\n",
			t.Kind, t.Count, formatSeconds(t.ChargedSeconds), t.Amount, summary.Currency)
	}
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "TOTAL           %8s  %10s %s\n",
		formatSeconds(summary.ChargedSeconds), summary.Total, summary.Currency)
	b.WriteString("=====================================\n")

	return b.String()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("15:04:05")
}

func formatSeconds(seconds int64) string {
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}
