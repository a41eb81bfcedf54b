// Package model defines the structured receipt record produced by the vision
// model and consumed by the discrepancy calculator and validator.
package model

// Receipt is a parsed receipt. It is treated as a value: code that needs to
// change a nested part copies that part first.
type Receipt struct {
	Header   *Header  `json:"header,omitempty"`
	Category Category `json:"category,omitempty"`
	Items    []Item   `json:"items,omitzero"`
	Payment  *Payment `json:"payment,omitempty"`
	Summary  *Summary `json:"summary,omitempty"`
}

// Header holds the identifying information printed at the top of a receipt
type Header struct {
	ReceiptNumber string `json:"receipt_number"`
	Timestamp     string `json:"timestamp"` // ideally RFC3339
	StoreName     string `json:"store_name"`
	StoreAddress  string `json:"store_address"`
}

// Item is a single purchased line
type Item struct {
	Description string `json:"description"`
	Quantity    Amount `json:"quantity,omitzero"`
	UnitPrice   Amount `json:"unit_price,omitzero"`
	TotalPrice  Amount `json:"total_price,omitzero"`
	Tax         Amount `json:"tax,omitzero"`
}

// Payment describes how the receipt was settled
type Payment struct {
	TotalAmount Amount          `json:"total_amount,omitzero"`
	Currency    string          `json:"currency"`
	Methods     []PaymentMethod `json:"payment_methods,omitzero"`
	Taxes       Amount          `json:"taxes,omitzero"`
	Discounts   Amount          `json:"discounts,omitzero"`
}

// PaymentMethod is one tender used to pay the receipt
type PaymentMethod struct {
	Method    PaymentMethodKind `json:"method"`
	Amount    Amount            `json:"amount,omitzero"`
	CardLast4 *string           `json:"card_last_four,omitempty"`
}

// Summary holds the totals block. Discrepancy and ServiceChargeIncluded are
// written by the discrepancy calculator, never by the vision model.
type Summary struct {
	Subtotal              Amount   `json:"subtotal,omitzero"`
	Taxes                 Amount   `json:"taxes,omitzero"`
	Total                 Amount   `json:"total,omitzero"`
	Discounts             Amount   `json:"discounts,omitzero"`
	ServiceCharge         Amount   `json:"service_charge,omitzero"`
	OtherCharges          []Charge `json:"other_charges,omitempty"`
	Discrepancy           Amount   `json:"discrepancy,omitzero"`
	ServiceChargeIncluded *bool    `json:"service_charge_included,omitempty"`
}

// Charge is a named additional charge such as a delivery or packaging fee
type Charge struct {
	Description string `json:"description"`
	Amount      Amount `json:"amount,omitzero"`
}

// StoreName returns the store name, or "" when the header is missing.
func (r Receipt) StoreName() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.StoreName
}

// WithoutDerived returns r with the calculator-owned summary fields cleared.
// The summary is copied; r itself is not modified.
func (r Receipt) WithoutDerived() Receipt {
	if r.Summary == nil {
		return r
	}
	summary := *r.Summary
	summary.Discrepancy = Amount{}
	summary.ServiceChargeIncluded = nil
	r.Summary = &summary
	return r
}

// Timestamp returns the header timestamp, or "" when the header is missing.
func (r Receipt) Timestamp() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Timestamp
}

// Total returns the stated grand total.
func (r Receipt) Total() Amount {
	if r.Summary == nil {
		return Amount{}
	}
	return r.Summary.Total
}

// Currency returns the payment currency, or "" when payment is missing.
func (r Receipt) Currency() string {
	if r.Payment == nil {
		return ""
	}
	return r.Payment.Currency
}
