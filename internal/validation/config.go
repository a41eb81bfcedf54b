package validation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable thresholds used by the consistency checks
type Config struct {
	// MinimumTotal flags totals below it as probably expressed in the wrong
	// unit. The default suits currencies whose prices run into the thousands.
	// Zero or less disables the check.
	MinimumTotal float64 `yaml:"minimum_total" json:"minimum_total"`

	// ReferenceTaxRates are the percentages considered normal.
	ReferenceTaxRates []float64 `yaml:"reference_tax_rates" json:"reference_tax_rates"`
	TaxRateTolerance  float64   `yaml:"tax_rate_tolerance" json:"tax_rate_tolerance"`

	ItemsSubtotalTolerance float64 `yaml:"items_subtotal_tolerance" json:"items_subtotal_tolerance"`
	AmountTolerance        float64 `yaml:"amount_tolerance" json:"amount_tolerance"`
	DiscrepancyThreshold   float64 `yaml:"discrepancy_threshold" json:"discrepancy_threshold"`
	ServiceChargeMaxRatio  float64 `yaml:"service_charge_max_ratio" json:"service_charge_max_ratio"`
	MaxReceiptAgeYears     int     `yaml:"max_receipt_age_years" json:"max_receipt_age_years"`
}

// DefaultConfig returns the thresholds used when no rules file is given.
func DefaultConfig() Config {
	return Config{
		MinimumTotal:           1000,
		ReferenceTaxRates:      []float64{0, 5, 7, 10, 11, 12, 15, 18, 20, 21, 22, 25},
		TaxRateTolerance:       1,
		ItemsSubtotalTolerance: 1,
		AmountTolerance:        0.01,
		DiscrepancyThreshold:   1,
		ServiceChargeMaxRatio:  0.25,
		MaxReceiptAgeYears:     10,
	}
}

// LoadConfig reads a YAML rules file over the defaults. Keys missing from the
// file keep their default value. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing rules file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects thresholds that would make the checks meaningless.
func (c Config) Validate() error {
	switch {
	case c.TaxRateTolerance < 0:
		return fmt.Errorf("tax_rate_tolerance must not be negative")
	case c.ItemsSubtotalTolerance < 0:
		return fmt.Errorf("items_subtotal_tolerance must not be negative")
	case c.AmountTolerance < 0:
		return fmt.Errorf("amount_tolerance must not be negative")
	case c.DiscrepancyThreshold < 0:
		return fmt.Errorf("discrepancy_threshold must not be negative")
	case c.ServiceChargeMaxRatio <= 0:
		return fmt.Errorf("service_charge_max_ratio must be positive")
	case c.MaxReceiptAgeYears <= 0:
		return fmt.Errorf("max_receipt_age_years must be positive")
	}
	return nil
}
