package receipt

import (
	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FlagEngine", func() {
	var (
		engine *FlagEngine
		input  FlagInput
		flags  []Flag
	)

	BeforeEach(func() {
		engine = NewFlagEngine(DefaultFlagConfig())
		input = FlagInput{
			ID:          "new",
			Vendor:      "Shell",
			Amount:      decimal.RequireFromString("45.00"),
			AmountKnown: true,
			Category:    CategoryFuel,
			Confidence:  0.9,
		}
	})

	JustBeforeEach(func() {
		flags = engine.BuildFlags(input)
	})

	It("returns no flags for a clean receipt", func() {
		Expect(flags).To(BeEmpty())
	})

	When("the vendor is the unknown sentinel", func() {
		BeforeEach(func() {
			input.Vendor = "UNKNOWN"
		})

		It("flags the missing vendor", func() {
			Expect(flags).To(Equal([]Flag{FlagMissingVendor}))
		})
	})

	When("the amount could not be read", func() {
		BeforeEach(func() {
			input.Amount = decimal.Zero
			input.AmountKnown = false
		})

		It("flags the missing amount", func() {
			Expect(flags).To(Equal([]Flag{FlagMissingAmount}))
		})
	})

	When("the amount is zero", func() {
		BeforeEach(func() {
			input.Amount = decimal.Zero
		})

		It("flags the missing amount", func() {
			Expect(flags).To(ContainElement(FlagMissingAmount))
		})
	})

	When("extraction failed and nothing was read", func() {
		BeforeEach(func() {
			input = FlagInput{Confidence: 0}
		})

		It("returns no flags", func() {
			Expect(flags).To(BeEmpty())
		})
	})

	When("duplicates were found", func() {
		BeforeEach(func() {
			input.Duplicates = []DuplicateCandidate{{Receipt: &Receipt{ID: "old"}, Similarity: 0.9}}
		})

		It("flags a possible duplicate", func() {
			Expect(flags).To(Equal([]Flag{FlagPossibleDuplicate}))
		})
	})

	When("the amount is negative", func() {
		BeforeEach(func() {
			input.Amount = decimal.RequireFromString("-45.00")
		})

		It("flags a possible refund", func() {
			Expect(flags).To(ContainElement(FlagPossibleRefund))
		})
	})

	When("the caller marks a refund", func() {
		BeforeEach(func() {
			input.IsRefund = true
		})

		It("flags a possible refund", func() {
			Expect(flags).To(Equal([]Flag{FlagPossibleRefund}))
		})
	})

	When("several conditions hold", func() {
		BeforeEach(func() {
			input.Vendor = ""
			input.Notes = "store credit"
			input.Duplicates = []DuplicateCandidate{{Receipt: &Receipt{ID: "old"}, Similarity: 0.8}}
		})

		It("returns a sorted set", func() {
			Expect(flags).To(Equal([]Flag{FlagMissingVendor, FlagPossibleDuplicate, FlagPossibleRefund}))
		})
	})

	Describe("unusually high amounts", func() {
		history := func(vendor string, category Category, amounts ...string) []*Receipt {
			receipts := make([]*Receipt, 0, len(amounts))
			for i, a := range amounts {
				receipts = append(receipts, &Receipt{
					ID:       vendor + string(rune('a'+i)),
					OwnerID:  "owner-1",
					Vendor:   vendor,
					Category: category,
					Amount:   decimal.RequireFromString(a),
					Date:     day(i + 1),
				})
			}
			return receipts
		}

		When("the vendor history is long enough", func() {
			BeforeEach(func() {
				input.History = history("Shell", CategoryFuel, "40", "50", "60")
			})

			It("flags amounts above three times the average", func() {
				input.Amount = decimal.RequireFromString("150.01")
				Expect(engine.BuildFlags(input)).To(ContainElement(FlagUnusuallyHigh))
			})

			It("does not flag amounts at the limit", func() {
				input.Amount = decimal.RequireFromString("150.00")
				Expect(engine.BuildFlags(input)).NotTo(ContainElement(FlagUnusuallyHigh))
			})
		})

		When("only the trailing window counts", func() {
			BeforeEach(func() {
				amounts := []string{"1000"}
				for i := 0; i < 10; i++ {
					amounts = append(amounts, "10")
				}
				input.History = history("Shell", CategoryFuel, amounts...)
				input.Amount = decimal.RequireFromString("45")
			})

			It("ignores older receipts", func() {
				Expect(flags).To(ContainElement(FlagUnusuallyHigh))
			})
		})

		When("only the category has history", func() {
			BeforeEach(func() {
				input.History = history("Chevron", CategoryFuel, "10", "10", "10")
			})

			It("falls back to the category average", func() {
				Expect(flags).To(ContainElement(FlagUnusuallyHigh))
			})
		})

		When("there is too little history", func() {
			BeforeEach(func() {
				input.History = history("Shell", CategoryFuel, "10")
			})

			It("uses the absolute cutoff", func() {
				Expect(flags).NotTo(ContainElement(FlagUnusuallyHigh))
				input.Amount = decimal.RequireFromString("5000.01")
				Expect(engine.BuildFlags(input)).To(ContainElement(FlagUnusuallyHigh))
			})
		})

		When("no history is required and there is none", func() {
			BeforeEach(func() {
				cfg := DefaultFlagConfig()
				cfg.MinHistory = 0
				engine = NewFlagEngine(cfg)
				input.History = nil
			})

			It("falls through to the absolute cutoff", func() {
				Expect(flags).To(BeEmpty())
			})
		})
	})
})

var _ = Describe("IsLikelyRefund", func() {
	DescribeTable("keywords",
		func(vendor, notes string, expected bool) {
			Expect(IsLikelyRefund(vendor, notes)).To(Equal(expected))
		},
		Entry("refund in notes", "Home Depot", "Refund for damaged door", true),
		Entry("returns desk", "Lowe's Returns", "", true),
		Entry("reimbursement", "", "reimbursed by client", true),
		Entry("plain purchase", "Shell", "fill up", false),
		Entry("keyword inside a word", "Incredible Pizza", "", false),
	)
})
