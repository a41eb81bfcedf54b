package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
		result *ParseResult
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())

		included := false
		result = &ParseResult{
			ID:          "test-id",
			Filename:    "test-id_receipt.jpg",
			ContentType: "image/jpeg",
			Scanner:     "mock/vision",
			Receipt: model.Receipt{
				Header:   &model.Header{StoreName: "Toko Maju", Timestamp: "2025-06-01T12:30:00+07:00"},
				Category: model.CategoryGroceries,
				Items:    []model.Item{{Description: "Beras 5kg", TotalPrice: model.Some(75000)}},
				Summary: &model.Summary{
					Subtotal:              model.Some(75000),
					Total:                 model.Some(75000),
					Discrepancy:           model.Some(0),
					ServiceChargeIncluded: &included,
				},
			},
			Validation: validation.Result{
				Valid: true,
				Issues: []validation.Issue{
					{Type: validation.EmptyStoreAddress, Message: "Store address is empty", Severity: validation.SeverityInfo},
				},
				ConfidenceScore: 0.97,
			},
			CreatedAt: time.Date(2025, 6, 1, 5, 30, 0, 0, time.UTC),
		}
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveResult", func() {
		It("round-trips the result", func() {
			Expect(db.SaveResult(result)).To(Succeed())

			got, err := db.GetResult("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(result))
		})

		It("overwrites an existing result", func() {
			Expect(db.SaveResult(result)).To(Succeed())
			result.Scanner = "other/vision"
			Expect(db.SaveResult(result)).To(Succeed())

			got, err := db.GetResult("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Scanner).To(Equal("other/vision"))
		})

		When("the result has no ID", func() {
			It("returns an error", func() {
				result.ID = ""
				Expect(db.SaveResult(result)).To(MatchError(ContainSubstring("no id")))
			})
		})
	})

	Describe("GetResult", func() {
		When("the result does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := db.GetResult("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListResults", func() {
		When("the database is empty", func() {
			It("returns an empty list", func() {
				results, err := db.ListResults()
				Expect(err).NotTo(HaveOccurred())
				Expect(results).NotTo(BeNil())
				Expect(results).To(BeEmpty())
			})
		})

		When("results exist", func() {
			BeforeEach(func() {
				Expect(db.SaveResult(result)).To(Succeed())
				second := *result
				second.ID = "second-id"
				Expect(db.SaveResult(&second)).To(Succeed())
			})

			It("returns all of them", func() {
				results, err := db.ListResults()
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(2))
				Expect(results[0].ID).To(Equal("second-id"))
				Expect(results[1].ID).To(Equal("test-id"))
			})
		})
	})

	Describe("DeleteResult", func() {
		BeforeEach(func() {
			Expect(db.SaveResult(result)).To(Succeed())
		})

		It("removes the result", func() {
			Expect(db.DeleteResult("test-id")).To(Succeed())
			_, err := db.GetResult("test-id")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("ignores missing IDs", func() {
			Expect(db.DeleteResult("missing")).To(Succeed())
		})
	})

	Describe("reopening", func() {
		It("keeps saved results", func() {
			Expect(db.SaveResult(result)).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			got, err := db.GetResult("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.StoreName()).To(Equal("Toko Maju"))
		})
	})
})
