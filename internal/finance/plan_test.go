package finance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"financing_api/internal/errs"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputePlan(t *testing.T) {
	tests := []struct {
		name               string
		itemValue          string
		downPaymentPercent string
		interestRate       string
		installmentCount   int
		expected           map[string]string
		expectedError      bool
	}{
		{
			name:               "reference_plan",
			itemValue:          "12500",
			downPaymentPercent: "40",
			interestRate:       "0.525",
			installmentCount:   6,
			expected: map[string]string{
				"down_payment":       "5000",
				"financed_amount":    "7500",
				"total_interest":     "3937.5",
				"total_installments": "11437.5",
				"installment_amount": "1906.25",
			},
		},
		{
			name:               "zero_installments_pay_in_full",
			itemValue:          "1000",
			downPaymentPercent: "100",
			interestRate:       "0.3",
			installmentCount:   0,
			expected: map[string]string{
				"down_payment":       "1000",
				"financed_amount":    "0",
				"total_interest":     "0",
				"total_installments": "0",
				"installment_amount": "0",
			},
		},
		{
			name:               "zero_item_value",
			itemValue:          "0",
			downPaymentPercent: "0",
			interestRate:       "0.5",
			installmentCount:   4,
			expected: map[string]string{
				"down_payment":       "0",
				"financed_amount":    "0",
				"total_interest":     "0",
				"total_installments": "0",
				"installment_amount": "0",
			},
		},
		{
			name:               "zero_interest",
			itemValue:          "900",
			downPaymentPercent: "0",
			interestRate:       "0",
			installmentCount:   3,
			expected: map[string]string{
				"down_payment":       "0",
				"financed_amount":    "900",
				"total_interest":     "0",
				"total_installments": "900",
				"installment_amount": "300",
			},
		},
		{
			name:               "negative_item_value",
			itemValue:          "-100",
			downPaymentPercent: "40",
			interestRate:       "0.5",
			installmentCount:   6,
			expectedError:      true,
		},
		{
			name:               "down_payment_percent_above_100",
			itemValue:          "100",
			downPaymentPercent: "101",
			interestRate:       "0.5",
			installmentCount:   6,
			expectedError:      true,
		},
		{
			name:               "negative_down_payment_percent",
			itemValue:          "100",
			downPaymentPercent: "-1",
			interestRate:       "0.5",
			installmentCount:   6,
			expectedError:      true,
		},
		{
			name:               "negative_interest_rate",
			itemValue:          "100",
			downPaymentPercent: "40",
			interestRate:       "-0.1",
			installmentCount:   6,
			expectedError:      true,
		},
		{
			name:               "negative_installment_count",
			itemValue:          "100",
			downPaymentPercent: "40",
			interestRate:       "0.5",
			installmentCount:   -1,
			expectedError:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ComputePlan(dec(tt.itemValue), dec(tt.downPaymentPercent), dec(tt.interestRate), tt.installmentCount)

			if tt.expectedError {
				if err == nil {
					t.Fatal("expected error, but got nil")
				}
				var validationErr *errs.ValidationError
				if !errors.As(err, &validationErr) {
					t.Errorf("expected ValidationError, but got %T: %v", err, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := map[string]decimal.Decimal{
				"down_payment":       plan.DownPayment,
				"financed_amount":    plan.FinancedAmount,
				"total_interest":     plan.TotalInterest,
				"total_installments": plan.TotalInstallments,
				"installment_amount": plan.InstallmentAmount,
			}
			for field, want := range tt.expected {
				if !got[field].Equal(dec(want)) {
					t.Errorf("expected %s %s, but got %s", field, want, got[field])
				}
			}
		})
	}
}

func TestComputePlanConservation(t *testing.T) {
	// Down payment plus financed amount always reassembles the item value.
	cases := []struct {
		itemValue          string
		downPaymentPercent string
	}{
		{"12500", "40"},
		{"999.99", "33"},
		{"1", "0"},
		{"750000", "100"},
		{"123.45", "17.5"},
	}

	for _, c := range cases {
		plan, err := ComputePlan(dec(c.itemValue), dec(c.downPaymentPercent), dec("0.525"), 6)
		if err != nil {
			t.Fatalf("unexpected error for itemValue=%s: %v", c.itemValue, err)
		}

		sum := plan.DownPayment.Add(plan.FinancedAmount)
		if !sum.Equal(dec(c.itemValue)) {
			t.Errorf("itemValue=%s percent=%s: down payment %s + financed %s = %s, want %s",
				c.itemValue, c.downPaymentPercent, plan.DownPayment, plan.FinancedAmount, sum, c.itemValue)
		}

		for name, v := range map[string]decimal.Decimal{
			"down_payment":       plan.DownPayment,
			"financed_amount":    plan.FinancedAmount,
			"total_interest":     plan.TotalInterest,
			"total_installments": plan.TotalInstallments,
			"installment_amount": plan.InstallmentAmount,
		} {
			if v.IsNegative() {
				t.Errorf("itemValue=%s: %s is negative: %s", c.itemValue, name, v)
			}
		}
	}
}
