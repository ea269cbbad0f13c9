package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"financing_api/types"
)

// InstallmentIntervalDays is the fixed biweekly cadence between due dates.
// It is a domain rule, not a per-request setting.
const InstallmentIntervalDays = 15

// BuildSchedule derives the installment slots for an approved request.
// Payments are matched by ordinal count only: the first paidCount slots are
// paid in creation order, no matter what dates or amounts the payments
// actually carried. The first slot falls due 15 days after the request was
// created.
func BuildSchedule(req *types.FinancingRequest, paidCount int) []types.ScheduleItem {
	items := make([]types.ScheduleItem, 0, req.InstallmentCount)
	for i := 0; i < req.InstallmentCount; i++ {
		status := types.InstallmentStatusPending
		if i < paidCount {
			status = types.InstallmentStatusPaid
		}
		items = append(items, types.ScheduleItem{
			RequestID: req.ID,
			Number:    i + 1,
			DueDate:   req.CreatedAt.AddDate(0, 0, InstallmentIntervalDays*(i+1)),
			Amount:    req.InstallmentAmount,
			Status:    status,
		})
	}
	return items
}

// Progress computes the percent of the total obligation covered by the paid
// amount, capped at 100. A zero obligation counts as fully paid.
func Progress(totalObligation, paidAmount decimal.Decimal) decimal.Decimal {
	if totalObligation.IsZero() {
		return hundred
	}
	pct := paidAmount.Div(totalObligation).Mul(hundred)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// NextDue returns the earliest pending due date across the given items,
// or nil when nothing is pending.
func NextDue(items []types.ScheduleItem) *time.Time {
	var next *time.Time
	for i := range items {
		if items[i].Status != types.InstallmentStatusPending {
			continue
		}
		if next == nil || items[i].DueDate.Before(*next) {
			due := items[i].DueDate
			next = &due
		}
	}
	return next
}
