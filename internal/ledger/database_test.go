package ledger

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/bookkeeping/internal/extraction"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("customers", func() {
		It("round trips a customer", func() {
			Expect(db.SaveCustomer(&Customer{ID: "c1", Name: "Dana", Email: "dana@example.com"})).To(Succeed())

			saved, err := db.GetCustomer("c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("Dana"))
			Expect(saved.Email).To(Equal("dana@example.com"))
		})

		It("lists every customer", func() {
			Expect(db.SaveCustomer(&Customer{ID: "c1", Name: "Dana"})).To(Succeed())
			Expect(db.SaveCustomer(&Customer{ID: "c2", Name: "Noa"})).To(Succeed())

			customers, err := db.ListCustomers()
			Expect(err).NotTo(HaveOccurred())
			Expect(customers).To(HaveLen(2))
		})

		It("returns ErrNotFound for a missing customer", func() {
			_, err := db.GetCustomer("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("deletes a customer", func() {
			Expect(db.SaveCustomer(&Customer{ID: "c1", Name: "Dana"})).To(Succeed())
			Expect(db.DeleteCustomer("c1")).To(Succeed())

			_, err := db.GetCustomer("c1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("returns ErrNotFound when deleting a missing customer", func() {
			Expect(db.DeleteCustomer("missing")).To(MatchError(ErrNotFound))
		})
	})

	Describe("suppliers", func() {
		It("round trips a supplier", func() {
			Expect(db.SaveSupplier(&Supplier{ID: "s1", Name: "Paz"})).To(Succeed())

			saved, err := db.GetSupplier("s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("Paz"))
		})

		It("returns an empty list when there are none", func() {
			suppliers, err := db.ListSuppliers()
			Expect(err).NotTo(HaveOccurred())
			Expect(suppliers).To(BeEmpty())
			Expect(suppliers).NotTo(BeNil())
		})
	})

	Describe("expenses", func() {
		var expense *Expense

		BeforeEach(func() {
			expense = &Expense{
				ID:            "e1",
				Date:          day(2024, 1, 15),
				SupplierID:    "s1",
				Category:      extraction.CategoryVehicle,
				Amount:        decimal.RequireFromString("117.50"),
				VAT:           decimal.NewFromInt(17),
				PaymentMethod: extraction.PaymentCash,
				Source:        SourceScan,
			}
			Expect(db.SaveExpense(expense)).To(Succeed())
		})

		It("keeps decimal amounts exact", func() {
			saved, err := db.GetExpense("e1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Amount.Equal(decimal.RequireFromString("117.5"))).To(BeTrue())
			Expect(saved.Category).To(Equal(extraction.CategoryVehicle))
			Expect(saved.Date.Equal(day(2024, 1, 15))).To(BeTrue())
		})

		It("deletes all expenses and counts them", func() {
			Expect(db.SaveExpense(&Expense{ID: "e2"})).To(Succeed())

			n, err := db.DeleteAllExpenses()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			expenses, err := db.ListExpenses()
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).To(BeEmpty())
		})

		It("can save again after deleting all", func() {
			_, err := db.DeleteAllExpenses()
			Expect(err).NotTo(HaveOccurred())
			Expect(db.SaveExpense(&Expense{ID: "e3"})).To(Succeed())

			expenses, err := db.ListExpenses()
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).To(HaveLen(1))
		})
	})

	Describe("incomes", func() {
		BeforeEach(func() {
			Expect(db.SaveIncome(&Income{ID: "i1", ReceiptNumber: "1001", Amount: decimal.NewFromInt(500)})).To(Succeed())
		})

		It("rejects a second income with the same receipt number", func() {
			err := db.SaveIncome(&Income{ID: "i2", ReceiptNumber: "1001"})
			Expect(err).To(MatchError(ErrConflict))
		})

		It("lets an income be saved again under its own receipt number", func() {
			Expect(db.SaveIncome(&Income{ID: "i1", ReceiptNumber: "1001", Amount: decimal.NewFromInt(600)})).To(Succeed())

			saved, err := db.GetIncome("i1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Amount.Equal(decimal.NewFromInt(600))).To(BeTrue())
		})

		It("frees the old receipt number when an income is renumbered", func() {
			Expect(db.SaveIncome(&Income{ID: "i1", ReceiptNumber: "1002"})).To(Succeed())
			Expect(db.SaveIncome(&Income{ID: "i2", ReceiptNumber: "1001"})).To(Succeed())
		})

		It("frees the receipt number when an income is deleted", func() {
			Expect(db.DeleteIncome("i1")).To(Succeed())
			Expect(db.SaveIncome(&Income{ID: "i2", ReceiptNumber: "1001"})).To(Succeed())
		})

		It("returns ErrNotFound when deleting a missing income", func() {
			Expect(db.DeleteIncome("missing")).To(MatchError(ErrNotFound))
		})

		It("clears receipt numbers when deleting all incomes", func() {
			n, err := db.DeleteAllIncomes()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(db.SaveIncome(&Income{ID: "i2", ReceiptNumber: "1001"})).To(Succeed())
		})
	})
})
