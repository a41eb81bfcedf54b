package validation

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LoadConfig", func() {
	var (
		dir  string
		path string
		cfg  Config
		err  error
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "rules.yaml")
	})

	JustBeforeEach(func() {
		cfg, err = LoadConfig(path)
	})

	When("no path is given", func() {
		BeforeEach(func() {
			path = ""
		})

		It("returns the defaults", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(DefaultConfig()))
		})
	})

	When("the file overrides some keys", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("minimum_total: 10\nreference_tax_rates: [8, 19]\n"), 0644)).To(Succeed())
		})

		It("applies the overrides", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.MinimumTotal).To(Equal(10.0))
			Expect(cfg.ReferenceTaxRates).To(Equal([]float64{8, 19}))
		})

		It("keeps the defaults for the rest", func() {
			Expect(cfg.AmountTolerance).To(Equal(0.01))
			Expect(cfg.ServiceChargeMaxRatio).To(Equal(0.25))
			Expect(cfg.MaxReceiptAgeYears).To(Equal(10))
		})
	})

	When("the file is not valid YAML", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("minimum_total: [oops"), 0644)).To(Succeed())
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing rules file")))
		})
	})

	When("a threshold is out of range", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("amount_tolerance: -1\n"), 0644)).To(Succeed())
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("amount_tolerance")))
		})
	})

	When("the file does not exist", func() {
		BeforeEach(func() {
			path = filepath.Join(dir, "missing.yaml")
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("reading rules file")))
		})
	})
})

var _ = Describe("Config.Validate", func() {
	It("accepts the defaults", func() {
		Expect(DefaultConfig().Validate()).To(Succeed())
	})

	It("rejects a non-positive receipt age", func() {
		cfg := DefaultConfig()
		cfg.MaxReceiptAgeYears = 0
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("max_receipt_age_years")))
	})
})
