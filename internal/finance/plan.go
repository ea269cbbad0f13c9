package finance

import (
	"github.com/shopspring/decimal"

	"financing_api/internal/errs"
	"financing_api/types"
)

var hundred = decimal.NewFromInt(100)

// ComputePlan derives a flat-rate installment plan from the purchase terms.
// Interest is charged on the financed amount once, not on a declining
// balance. Results keep full precision; callers round for display only.
func ComputePlan(itemValue, downPaymentPercent, interestRate decimal.Decimal, installmentCount int) (*types.Plan, error) {
	if itemValue.IsNegative() {
		return nil, errs.Validationf("item_value", "must be non-negative, got %s", itemValue)
	}
	if downPaymentPercent.IsNegative() || downPaymentPercent.GreaterThan(hundred) {
		return nil, errs.Validationf("down_payment_percent", "must be between 0 and 100, got %s", downPaymentPercent)
	}
	if interestRate.IsNegative() {
		return nil, errs.Validationf("interest_rate", "must be non-negative, got %s", interestRate)
	}
	if installmentCount < 0 {
		return nil, errs.Validationf("installment_count", "must be non-negative, got %d", installmentCount)
	}

	downPayment := itemValue.Mul(downPaymentPercent).Div(hundred)
	financedAmount := itemValue.Sub(downPayment)
	totalInterest := financedAmount.Mul(interestRate)
	totalInstallments := financedAmount.Add(totalInterest)

	// Zero installments is a valid "pay in full up front" plan.
	installmentAmount := decimal.Zero
	if installmentCount > 0 {
		installmentAmount = totalInstallments.Div(decimal.NewFromInt(int64(installmentCount)))
	}

	return &types.Plan{
		DownPayment:       downPayment,
		FinancedAmount:    financedAmount,
		TotalInterest:     totalInterest,
		TotalInstallments: totalInstallments,
		InstallmentAmount: installmentAmount,
	}, nil
}
