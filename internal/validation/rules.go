package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/money"
)

var (
	strictTimestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)
	currencyRe        = regexp.MustCompile(`^[A-Z]{3}$`)
	receiptNumberRe   = regexp.MustCompile(`[^A-Za-z0-9\-/.]`)
	cardLast4Re       = regexp.MustCompile(`^\d{4}$`)
)

// timestampLayouts are tried in order. Layouts without a zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
}

// input is everything a check may look at
type input struct {
	receipt model.Receipt
	cfg     Config
	now     time.Time
}

// rule is one consistency check. Checks are independent and must not panic on
// missing data; they return nothing when their fields are absent.
type rule struct {
	name  string
	emits []IssueType
	check func(in input) []Issue
}

// rules run in this order, which is also the order of the reported issues.
var rules = []rule{
	{"timestamp", []IssueType{TimestampInvalid, TimestampFuture, TimestampTooOld}, checkTimestamp},
	{"timestamp_format", []IssueType{TimestampFormat}, checkTimestampFormat},
	{"tax_rate", []IssueType{UnusualTaxRate}, checkTaxRate},
	{"items_subtotal", []IssueType{ItemsSubtotalMismatch}, checkItemsSubtotal},
	{"currency", []IssueType{InvalidCurrencyCode}, checkCurrency},
	{"receipt_number", []IssueType{SuspiciousReceiptNumber}, checkReceiptNumber},
	{"item_prices", []IssueType{ItemPriceCalculation}, checkItemPrices},
	{"payment_methods", []IssueType{PaymentMethodsMismatch}, checkPaymentMethods},
	{"store_info", []IssueType{EmptyStoreName, EmptyStoreAddress}, checkStoreInfo},
	{"duplicate_items", []IssueType{DuplicateItems}, checkDuplicateItems},
	{"summary_arithmetic", []IssueType{SummaryCalculationError}, checkSummaryArithmetic},
	{"negative_amounts", []IssueType{NegativeAmount}, checkNegativeAmounts},
	{"card_format", []IssueType{CardNumberFormat}, checkCardFormat},
	{"discrepancy", []IssueType{DiscrepancyExplanation}, checkDiscrepancy},
	{"service_charge", []IssueType{ServiceChargeCalculation, SummaryCalculationError}, checkServiceCharge},
	{"total_floor", []IssueType{TotalTooSmall}, checkTotalFloor},
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func checkTimestamp(in input) []Issue {
	ts := strings.TrimSpace(in.receipt.Timestamp())
	if ts == "" {
		return nil
	}

	t, ok := parseTimestamp(ts)
	if !ok {
		return []Issue{{
			Type:     TimestampInvalid,
			Message:  fmt.Sprintf("Timestamp %q could not be parsed as a date", ts),
			Severity: SeverityError,
		}}
	}

	if t.After(in.now) {
		return []Issue{{
			Type:     TimestampFuture,
			Message:  fmt.Sprintf("Timestamp %s is in the future", ts),
			Severity: SeverityWarning,
		}}
	}
	if t.Before(in.now.AddDate(-in.cfg.MaxReceiptAgeYears, 0, 0)) {
		return []Issue{{
			Type:     TimestampTooOld,
			Message:  fmt.Sprintf("Timestamp %s is more than %d years old", ts, in.cfg.MaxReceiptAgeYears),
			Severity: SeverityWarning,
		}}
	}
	return nil
}

func checkTimestampFormat(in input) []Issue {
	ts := strings.TrimSpace(in.receipt.Timestamp())
	if ts == "" || strictTimestampRe.MatchString(ts) {
		return nil
	}
	return []Issue{{
		Type:     TimestampFormat,
		Message:  fmt.Sprintf("Timestamp %q is not in RFC3339 format (YYYY-MM-DDTHH:MM:SS with zone)", ts),
		Severity: SeverityWarning,
	}}
}

func checkTaxRate(in input) []Issue {
	s := in.receipt.Summary
	if s == nil || !s.Taxes.Valid || !s.Subtotal.Valid || s.Subtotal.Value == 0 {
		return nil
	}

	// Rounds half up, like the percentages people print on receipts.
	rate := math.Floor(s.Taxes.Value/s.Subtotal.Value*100 + 0.5)
	if rate <= 0 {
		return nil
	}
	for _, ref := range in.cfg.ReferenceTaxRates {
		if math.Abs(rate-ref) <= in.cfg.TaxRateTolerance {
			return nil
		}
	}
	return []Issue{{
		Type:     UnusualTaxRate,
		Message:  fmt.Sprintf("Unusual tax rate of %s%% of subtotal", strconv.FormatFloat(rate, 'f', -1, 64)),
		Severity: SeverityInfo,
	}}
}

func checkItemsSubtotal(in input) []Issue {
	s := in.receipt.Summary
	if s == nil || !s.Total.Valid || in.receipt.Items == nil || !s.Subtotal.Valid {
		return nil
	}

	var sum float64
	for _, item := range in.receipt.Items {
		sum += item.TotalPrice.Or(0)
	}
	if math.Abs(sum-s.Subtotal.Value) <= in.cfg.ItemsSubtotalTolerance {
		return nil
	}
	return []Issue{{
		Type: ItemsSubtotalMismatch,
		Message: fmt.Sprintf("Sum of item totals %s does not match subtotal %s",
			money.Format2(sum), money.Format2(s.Subtotal.Value)),
		Severity:   SeverityWarning,
		Comparison: compare(s.Subtotal.Value, sum),
	}}
}

func checkCurrency(in input) []Issue {
	currency := in.receipt.Currency()
	if currency == "" || currencyRe.MatchString(currency) {
		return nil
	}
	return []Issue{{
		Type:     InvalidCurrencyCode,
		Message:  fmt.Sprintf("Currency %q is not a three-letter ISO 4217 code", currency),
		Severity: SeverityWarning,
	}}
}

func checkReceiptNumber(in input) []Issue {
	if in.receipt.Header == nil {
		return nil
	}
	number := in.receipt.Header.ReceiptNumber
	if number == "" || !receiptNumberRe.MatchString(number) {
		return nil
	}
	return []Issue{{
		Type:     SuspiciousReceiptNumber,
		Message:  fmt.Sprintf("Receipt number %q contains unexpected characters", number),
		Severity: SeverityInfo,
	}}
}

func checkItemPrices(in input) []Issue {
	var issues []Issue
	for i, item := range in.receipt.Items {
		if !item.Quantity.Valid || !item.UnitPrice.Valid || !item.TotalPrice.Valid {
			continue
		}
		calculated := item.Quantity.Value * item.UnitPrice.Value
		if math.Abs(calculated-item.TotalPrice.Value) <= in.cfg.AmountTolerance {
			continue
		}
		issues = append(issues, Issue{
			Type: ItemPriceCalculation,
			Message: fmt.Sprintf("Item %d: quantity x unit price is %s but total price is %s (%s)",
				i+1, money.Format2(calculated), money.Format2(item.TotalPrice.Value), item.Description),
			Severity:   SeverityWarning,
			Comparison: compare(item.TotalPrice.Value, calculated),
		})
	}
	return issues
}

func checkPaymentMethods(in input) []Issue {
	p := in.receipt.Payment
	if p == nil || p.Methods == nil || !p.TotalAmount.Valid {
		return nil
	}

	var sum float64
	for _, m := range p.Methods {
		sum += m.Amount.Or(0)
	}
	if math.Abs(sum-p.TotalAmount.Value) <= in.cfg.AmountTolerance {
		return nil
	}
	return []Issue{{
		Type: PaymentMethodsMismatch,
		Message: fmt.Sprintf("Payment methods add up to %s but payment total is %s",
			money.Format2(sum), money.Format2(p.TotalAmount.Value)),
		Severity:   SeverityWarning,
		Comparison: compare(p.TotalAmount.Value, sum),
	}}
}

func checkStoreInfo(in input) []Issue {
	h := in.receipt.Header
	if h == nil {
		return nil
	}

	var issues []Issue
	if strings.TrimSpace(h.StoreName) == "" {
		issues = append(issues, Issue{
			Type:     EmptyStoreName,
			Message:  "Store name is empty",
			Severity: SeverityWarning,
		})
	}
	if strings.TrimSpace(h.StoreAddress) == "" {
		issues = append(issues, Issue{
			Type:     EmptyStoreAddress,
			Message:  "Store address is empty",
			Severity: SeverityInfo,
		})
	}
	return issues
}

func checkDuplicateItems(in input) []Issue {
	type key struct {
		description string
		unitPrice   model.Amount
	}

	index := make(map[key]int)
	var groups [][]int
	var names []string
	for i, item := range in.receipt.Items {
		k := key{strings.ToLower(strings.TrimSpace(item.Description)), item.UnitPrice}
		if g, ok := index[k]; ok {
			groups[g] = append(groups[g], i+1)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, []int{i + 1})
		names = append(names, strings.TrimSpace(item.Description))
	}

	var issues []Issue
	for g, members := range groups {
		if len(members) < 2 {
			continue
		}
		positions := make([]string, len(members))
		for i, m := range members {
			positions[i] = strconv.Itoa(m)
		}
		issues = append(issues, Issue{
			Type:     DuplicateItems,
			Message:  fmt.Sprintf("Possible duplicate %q at items %s", names[g], strings.Join(positions, ", ")),
			Severity: SeverityInfo,
		})
	}
	return issues
}

func checkSummaryArithmetic(in input) []Issue {
	s := in.receipt.Summary
	if s == nil || !s.Subtotal.Valid || !s.Taxes.Valid || !s.Total.Valid {
		return nil
	}

	expected := s.Subtotal.Value + s.Taxes.Value + s.ServiceCharge.Or(0) - s.Discounts.Or(0)
	if math.Abs(expected-s.Total.Value) <= in.cfg.AmountTolerance {
		return nil
	}
	return []Issue{{
		Type: SummaryCalculationError,
		Message: fmt.Sprintf("Subtotal + taxes + service charge - discounts is %s but total is %s",
			money.Format2(expected), money.Format2(s.Total.Value)),
		Severity:   SeverityWarning,
		Comparison: compare(s.Total.Value, expected),
	}}
}

func checkNegativeAmounts(in input) []Issue {
	var issues []Issue
	for i, item := range in.receipt.Items {
		if negative(item.Quantity) || negative(item.UnitPrice) || negative(item.TotalPrice) {
			issues = append(issues, Issue{
				Type:     NegativeAmount,
				Message:  fmt.Sprintf("Item %d has a negative quantity or price (%s)", i+1, item.Description),
				Severity: SeverityWarning,
			})
		}
	}

	s := in.receipt.Summary
	if s == nil {
		return issues
	}
	if negative(s.Subtotal) {
		issues = append(issues, Issue{
			Type:     NegativeAmount,
			Message:  "Subtotal is negative",
			Severity: SeverityWarning,
		})
	}
	if negative(s.Total) {
		issues = append(issues, Issue{
			Type:     NegativeAmount,
			Message:  "Total is negative",
			Severity: SeverityWarning,
		})
	}
	return issues
}

func checkCardFormat(in input) []Issue {
	p := in.receipt.Payment
	if p == nil {
		return nil
	}

	var issues []Issue
	for i, m := range p.Methods {
		if !m.Method.IsCard() {
			continue
		}
		switch {
		case m.CardLast4 == nil || *m.CardLast4 == "":
			issues = append(issues, Issue{
				Type:     CardNumberFormat,
				Message:  fmt.Sprintf("Payment %d (%s) has no card last four digits", i+1, m.Method),
				Severity: SeverityInfo,
			})
		case !cardLast4Re.MatchString(*m.CardLast4):
			issues = append(issues, Issue{
				Type:     CardNumberFormat,
				Message:  fmt.Sprintf("Payment %d (%s) card last four %q is not four digits", i+1, m.Method, *m.CardLast4),
				Severity: SeverityWarning,
			})
		}
	}
	return issues
}

func checkDiscrepancy(in input) []Issue {
	s := in.receipt.Summary
	if s == nil || !s.Discrepancy.Valid || s.Discrepancy.Value == 0 {
		return nil
	}
	if math.Abs(s.Discrepancy.Value) <= in.cfg.DiscrepancyThreshold {
		return nil
	}
	return []Issue{{
		Type:     DiscrepancyExplanation,
		Message:  fmt.Sprintf("Stated total differs from the recalculated total by %s", money.Format2(s.Discrepancy.Value)),
		Severity: SeverityWarning,
	}}
}

func checkServiceCharge(in input) []Issue {
	s := in.receipt.Summary
	if s == nil || !s.Subtotal.Valid {
		return nil
	}
	subtotal := s.Subtotal.Value
	serviceCharge := s.ServiceCharge.Or(0)
	tol := in.cfg.AmountTolerance

	var issues []Issue
	if serviceCharge != 0 {
		if subtotal != 0 && serviceCharge/subtotal > in.cfg.ServiceChargeMaxRatio {
			issues = append(issues, Issue{
				Type: ServiceChargeCalculation,
				Message: fmt.Sprintf("Service charge %s is unusually high (%s%% of subtotal)",
					money.Format2(serviceCharge), money.Format2(serviceCharge/subtotal*100)),
				Severity: SeverityInfo,
			})
		}
		if s.Taxes.Valid && money.Equal(serviceCharge, s.Taxes.Value, tol) {
			issues = append(issues, Issue{
				Type:     ServiceChargeCalculation,
				Message:  fmt.Sprintf("Service charge %s is identical to tax, possible duplicate", money.Format2(serviceCharge)),
				Severity: SeverityInfo,
			})
		}
	}

	if !s.Taxes.Valid || !s.Total.Valid {
		return issues
	}

	included := s.ServiceChargeIncluded != nil && *s.ServiceChargeIncluded
	without := subtotal + s.Taxes.Value - s.Discounts.Or(0)
	with := without + serviceCharge
	expected := without
	if included {
		expected = with
	}

	diff := math.Abs(s.Total.Value - expected)
	if diff <= tol {
		return issues
	}
	if serviceCharge != 0 && money.Equal(serviceCharge, diff, tol) {
		return append(issues, Issue{
			Type: ServiceChargeCalculation,
			Message: fmt.Sprintf("Total differs from the summary by %s, which matches the service charge",
				money.Format2(diff)),
			Severity: SeverityInfo,
		})
	}
	return append(issues, Issue{
		Type: SummaryCalculationError,
		Message: fmt.Sprintf("Total is %s but expected %s (with service charge %s, without service charge %s)",
			money.Format2(s.Total.Value), money.Format2(expected), money.Format2(with), money.Format2(without)),
		Severity:   SeverityWarning,
		Comparison: compare(s.Total.Value, expected),
	})
}

func checkTotalFloor(in input) []Issue {
	s := in.receipt.Summary
	if s == nil || !s.Total.Valid || in.cfg.MinimumTotal <= 0 {
		return nil
	}
	if s.Total.Value >= in.cfg.MinimumTotal {
		return nil
	}
	return []Issue{{
		Type: TotalTooSmall,
		Message: fmt.Sprintf("Total %s is below %s; amounts may have been read in the wrong unit",
			money.Format2(s.Total.Value), money.Format2(in.cfg.MinimumTotal)),
		Severity: SeverityFatal,
	}}
}

func negative(a model.Amount) bool {
	return a.Valid && a.Value < 0
}

func compare(stated, expected float64) *Comparison {
	return &Comparison{Stated: money.Round2(stated), Expected: money.Round2(expected)}
}
