package model

import (
	"encoding/json"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Category is the spend category assigned to a receipt
type Category string

const (
	CategoryGroceries      Category = "groceries"
	CategoryDining         Category = "dining"
	CategoryTransportation Category = "transportation"
	CategoryShopping       Category = "shopping"
	CategoryUtilities      Category = "utilities"
	CategoryEntertainment  Category = "entertainment"
	CategoryHealth         Category = "health"
	CategoryTravel         Category = "travel"
	CategoryEducation      Category = "education"
	CategoryOther          Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryGroceries,
	CategoryDining,
	CategoryTransportation,
	CategoryShopping,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryHealth,
	CategoryTravel,
	CategoryEducation,
	CategoryOther,
}

var categoryAliases = map[string]Category{
	"grocery":           CategoryGroceries,
	"supermarket":       CategoryGroceries,
	"food":              CategoryDining,
	"food_and_beverage": CategoryDining,
	"restaurant":        CategoryDining,
	"cafe":              CategoryDining,
	"coffee":            CategoryDining,
	"transport":         CategoryTransportation,
	"fuel":              CategoryTransportation,
	"gas":               CategoryTransportation,
	"parking":           CategoryTransportation,
	"retail":            CategoryShopping,
	"clothing":          CategoryShopping,
	"electronics":       CategoryShopping,
	"bills":             CategoryUtilities,
	"internet":          CategoryUtilities,
	"phone":             CategoryUtilities,
	"movies":            CategoryEntertainment,
	"medical":           CategoryHealth,
	"pharmacy":          CategoryHealth,
	"healthcare":        CategoryHealth,
	"hotel":             CategoryTravel,
	"lodging":           CategoryTravel,
	"books":             CategoryEducation,
	"tuition":           CategoryEducation,
}

// maxCategoryDistance bounds how far a typo may be from a known category.
const maxCategoryDistance = 2

// ParseCategory maps free text returned by a model onto the closed category set.
// Exact names win, then known aliases, then the nearest category name within a
// small edit distance. Anything else is CategoryOther; blank input stays blank.
func ParseCategory(s string) Category {
	key := normalizeKey(s)
	if key == "" {
		return ""
	}
	for _, c := range Categories {
		if string(c) == key {
			return c
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c
	}

	best, bestDist := CategoryOther, maxCategoryDistance+1
	for _, c := range Categories {
		if d := levenshtein.ComputeDistance(key, string(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// UnmarshalJSON normalizes the category while decoding.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*c = ""
		return nil
	}
	*c = ParseCategory(s)
	return nil
}

// PaymentMethodKind is the tender type of a payment method
type PaymentMethodKind string

const (
	MethodCash         PaymentMethodKind = "cash"
	MethodCreditCard   PaymentMethodKind = "credit_card"
	MethodDebitCard    PaymentMethodKind = "debit_card"
	MethodEWallet      PaymentMethodKind = "e_wallet"
	MethodBankTransfer PaymentMethodKind = "bank_transfer"
	MethodOther        PaymentMethodKind = "other"
)

var methodAliases = map[string]PaymentMethodKind{
	"cash":          MethodCash,
	"credit":        MethodCreditCard,
	"credit_card":   MethodCreditCard,
	"card":          MethodCreditCard,
	"visa":          MethodCreditCard,
	"mastercard":    MethodCreditCard,
	"amex":          MethodCreditCard,
	"debit":         MethodDebitCard,
	"debit_card":    MethodDebitCard,
	"e_wallet":      MethodEWallet,
	"ewallet":       MethodEWallet,
	"wallet":        MethodEWallet,
	"qris":          MethodEWallet,
	"bank_transfer": MethodBankTransfer,
	"transfer":      MethodBankTransfer,
	"other":         MethodOther,
}

// ParsePaymentMethod maps free text onto a PaymentMethodKind.
func ParsePaymentMethod(s string) PaymentMethodKind {
	key := normalizeKey(s)
	if key == "" {
		return ""
	}
	if m, ok := methodAliases[key]; ok {
		return m
	}
	return MethodOther
}

// IsCard reports whether the method is paid by card.
func (m PaymentMethodKind) IsCard() bool {
	return m == MethodCreditCard || m == MethodDebitCard
}

// UnmarshalJSON normalizes the method while decoding.
func (m *PaymentMethodKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*m = ""
		return nil
	}
	*m = ParsePaymentMethod(s)
	return nil
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
