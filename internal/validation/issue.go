package validation

import (
	"fmt"
)

// Severity grades a validation issue. Only SeverityError makes a receipt invalid;
// SeverityFatal weighs far more on the confidence score but leaves validity alone.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{
	SeverityInfo:    "info",
	SeverityWarning: "warning",
	SeverityError:   "error",
	SeverityFatal:   "fatal",
}

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityFatal}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity parses the lowercase name of a severity.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(severityNames) {
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
	return []byte(severityNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IssueType identifies which consistency check produced an issue
type IssueType string

const (
	TimestampInvalid         IssueType = "TIMESTAMP_INVALID"
	TimestampFuture          IssueType = "TIMESTAMP_FUTURE"
	TimestampTooOld          IssueType = "TIMESTAMP_TOO_OLD"
	TimestampFormat          IssueType = "TIMESTAMP_FORMAT"
	UnusualTaxRate           IssueType = "UNUSUAL_TAX_RATE"
	ItemsSubtotalMismatch    IssueType = "ITEMS_SUBTOTAL_MISMATCH"
	InvalidCurrencyCode      IssueType = "INVALID_CURRENCY_CODE"
	SuspiciousReceiptNumber  IssueType = "SUSPICIOUS_RECEIPT_NUMBER"
	ItemPriceCalculation     IssueType = "ITEM_PRICE_CALCULATION"
	PaymentMethodsMismatch   IssueType = "PAYMENT_METHODS_MISMATCH"
	EmptyStoreName           IssueType = "EMPTY_STORE_NAME"
	EmptyStoreAddress        IssueType = "EMPTY_STORE_ADDRESS"
	DuplicateItems           IssueType = "DUPLICATE_ITEMS"
	SummaryCalculationError  IssueType = "SUMMARY_CALCULATION_ERROR"
	NegativeAmount           IssueType = "NEGATIVE_AMOUNT"
	CardNumberFormat         IssueType = "CARD_NUMBER_FORMAT"
	DiscrepancyExplanation   IssueType = "DISCREPANCY_EXPLANATION"
	ServiceChargeCalculation IssueType = "SERVICE_CHARGE_CALCULATION"
	TotalTooSmall            IssueType = "TOTAL_TOO_SMALL"
)

// IssueTypes is the closed catalog of issue types.
var IssueTypes = []IssueType{
	TimestampInvalid,
	TimestampFuture,
	TimestampTooOld,
	TimestampFormat,
	UnusualTaxRate,
	ItemsSubtotalMismatch,
	InvalidCurrencyCode,
	SuspiciousReceiptNumber,
	ItemPriceCalculation,
	PaymentMethodsMismatch,
	EmptyStoreName,
	EmptyStoreAddress,
	DuplicateItems,
	SummaryCalculationError,
	NegativeAmount,
	CardNumberFormat,
	DiscrepancyExplanation,
	ServiceChargeCalculation,
	TotalTooSmall,
}

// Valid reports whether t belongs to the catalog.
func (t IssueType) Valid() bool {
	for _, known := range IssueTypes {
		if t == known {
			return true
		}
	}
	return false
}

// numerical reports whether issues of this type compare a stated amount with a
// recomputed one. Their weight scales with the size of the mismatch.
func (t IssueType) numerical() bool {
	switch t {
	case ItemsSubtotalMismatch, SummaryCalculationError, ItemPriceCalculation,
		PaymentMethodsMismatch, DiscrepancyExplanation:
		return true
	}
	return false
}

// Comparison carries the two amounts a numerical issue is about, rounded to
// cents exactly as they appear in the issue message.
type Comparison struct {
	Stated   float64 `json:"stated"`
	Expected float64 `json:"expected"`
}

// Issue is a single validation finding
type Issue struct {
	Type       IssueType   `json:"type"`
	Message    string      `json:"message"`
	Severity   Severity    `json:"severity"`
	Comparison *Comparison `json:"comparison,omitempty"`
}

// Result is the outcome of validating one receipt
type Result struct {
	Valid           bool    `json:"valid"`
	Issues          []Issue `json:"issues"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Summarize counts issues per severity.
func Summarize(r Result) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		counts[s] = 0
	}
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}
