// Package discrepancy recomputes a receipt's grand total from its parts and
// records how far the stated total is from it.
package discrepancy

import (
	"math"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/money"
)

// Result is the arithmetic behind a discrepancy calculation
type Result struct {
	ItemsTotal                float64 `json:"items_total"`
	Taxes                     float64 `json:"taxes"`
	Discounts                 float64 `json:"discounts"`
	ServiceCharge             float64 `json:"service_charge"`
	OtherCharges              float64 `json:"other_charges"`
	ExpectedWithService       float64 `json:"expected_with_service_charge"`
	ExpectedWithoutService    float64 `json:"expected_without_service_charge"`
	DiscrepancyWithService    float64 `json:"discrepancy_with_service_charge"`
	DiscrepancyWithoutService float64 `json:"discrepancy_without_service_charge"`
	ServiceChargeIncluded     bool    `json:"service_charge_included"`
	Discrepancy               float64 `json:"discrepancy"`
}

// Breakdown computes both service-charge hypotheses for r. It returns false
// when the receipt has no items, no summary, or no numeric total.
func Breakdown(r model.Receipt) (Result, bool) {
	if r.Items == nil || r.Summary == nil || !r.Summary.Total.Valid {
		return Result{}, false
	}
	s := r.Summary

	var res Result
	for _, item := range r.Items {
		res.ItemsTotal += item.TotalPrice.Or(0)
	}
	res.Taxes = s.Taxes.Or(0)
	res.Discounts = s.Discounts.Or(0)
	res.ServiceCharge = s.ServiceCharge.Or(0)
	for _, c := range s.OtherCharges {
		res.OtherCharges += c.Amount.Or(0)
	}

	res.ExpectedWithService = res.ItemsTotal + res.Taxes + res.ServiceCharge + res.OtherCharges - res.Discounts
	res.ExpectedWithoutService = res.ItemsTotal + res.Taxes + res.OtherCharges - res.Discounts

	total := s.Total.Value
	res.DiscrepancyWithService = money.Round2(total - res.ExpectedWithService)
	res.DiscrepancyWithoutService = money.Round2(total - res.ExpectedWithoutService)

	// Ties go to "not included".
	res.ServiceChargeIncluded = math.Abs(res.DiscrepancyWithService) < math.Abs(res.DiscrepancyWithoutService)
	if res.ServiceChargeIncluded {
		res.Discrepancy = res.DiscrepancyWithService
	} else {
		res.Discrepancy = res.DiscrepancyWithoutService
	}
	return res, true
}

// Calculate returns r annotated with summary.discrepancy and
// summary.service_charge_included. Only the summary is copied; the input is
// never modified. Receipts Breakdown cannot handle come back unchanged.
func Calculate(r model.Receipt) model.Receipt {
	res, ok := Breakdown(r)
	if !ok {
		return r
	}

	summary := *r.Summary
	summary.Discrepancy = model.Some(res.Discrepancy)
	included := res.ServiceChargeIncluded
	summary.ServiceChargeIncluded = &included

	out := r
	out.Summary = &summary
	return out
}
