package receipt

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		bolt *bbolt.DB
		db   *BoltDB
	)

	BeforeEach(func() {
		var err error
		bolt, err = bbolt.Open(filepath.Join(GinkgoT().TempDir(), "test.db"), 0600, &bbolt.Options{Timeout: time.Second})
		Expect(err).NotTo(HaveOccurred())
		db, err = NewBoltDB(bolt)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if bolt != nil {
			bolt.Close()
		}
	})

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = &Receipt{
				ID:          "test-id",
				OwnerID:     "owner-1",
				Vendor:      "Home Depot",
				Category:    CategoryMaterials,
				Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				Amount:      decimal.RequireFromString("25.99"),
				ImageURL:    "test.jpg",
				ContentType: "image/jpeg",
				AIFlags:     []Flag{FlagPossibleDuplicate},
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should round-trip the money and flags", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Amount.Equal(receipt.Amount)).To(BeTrue())
				Expect(saved.AIFlags).To(Equal([]Flag{FlagPossibleDuplicate}))
				Expect(saved.Category).To(Equal(CategoryMaterials))
			})
		})

		When("the database is closed", func() {
			BeforeEach(func() {
				Expect(bolt.Close()).To(Succeed())
			})

			It("returns a persistence error", func() {
				Expect(errors.Is(err, ErrPersistence)).To(BeTrue())
			})
		})
	})

	Describe("GetReceipt", func() {
		When("receipt does not exist", func() {
			It("returns not found", func() {
				_, err := db.GetReceipt("nonexistent")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("ListReceipts", func() {
		var (
			receipts []*Receipt
			err      error
		)

		JustBeforeEach(func() {
			receipts, err = db.ListReceipts("owner-1")
		})

		When("receipts exist", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(&Receipt{ID: "id1", OwnerID: "owner-1"})).To(Succeed())
				Expect(db.SaveReceipt(&Receipt{ID: "id2", OwnerID: "owner-1"})).To(Succeed())
				Expect(db.SaveReceipt(&Receipt{ID: "id3", OwnerID: "owner-2"})).To(Succeed())
			})

			It("should return only the owner's receipts", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(HaveLen(2))
			})
		})

		When("no receipts exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(BeEmpty())
			})
		})
	})

	Describe("DeleteReceipt", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(&Receipt{ID: "test-id", OwnerID: "owner-1"})).To(Succeed())
		})

		It("should remove the receipt from the database", func() {
			Expect(db.DeleteReceipt("test-id")).To(Succeed())
			_, err := db.GetReceipt("test-id")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("returns not found for unknown receipts", func() {
			Expect(errors.Is(db.DeleteReceipt("nonexistent"), ErrNotFound)).To(BeTrue())
		})
	})
})
