package ledger

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Parties", func() {
	var (
		db      *mockDB
		idGen   *sequenceIDGenerator
		timeSrc *mockTimeSource
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		idGen = &sequenceIDGenerator{}
		timeSrc = &mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, &mockTextExtractor{}, &mockFieldExtractor{}, newMockStorage(), DefaultConfig(), idGen, timeSrc)
	})

	Describe("CreateCustomer", func() {
		It("assigns an ID and timestamps", func() {
			c, err := service.CreateCustomer(&Customer{Name: "  Dana Levi "})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(Equal("id-1"))
			Expect(c.Name).To(Equal("Dana Levi"))
			Expect(c.CreatedAt).To(Equal(timeSrc.now))
			Expect(db.customers).To(HaveKey("id-1"))
		})

		It("requires a name", func() {
			_, err := service.CreateCustomer(&Customer{Name: "  "})
			Expect(err).To(MatchError(ErrInvalidInput))
			Expect(db.customers).To(BeEmpty())
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("disk full")
			})

			It("returns the error", func() {
				_, err := service.CreateCustomer(&Customer{Name: "Dana"})
				Expect(err).To(MatchError(ContainSubstring("disk full")))
			})
		})
	})

	Describe("UpdateCustomer", func() {
		created := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

		BeforeEach(func() {
			db.customers["c1"] = &Customer{ID: "c1", Name: "Dana", CreatedAt: created}
		})

		It("keeps the ID and creation time", func() {
			c, err := service.UpdateCustomer("c1", &Customer{ID: "other", Name: "Dana Levi", Phone: "050"})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(Equal("c1"))
			Expect(c.CreatedAt).To(Equal(created))
			Expect(c.UpdatedAt).To(Equal(timeSrc.now))
			Expect(db.customers["c1"].Phone).To(Equal("050"))
		})

		It("returns ErrNotFound for an unknown customer", func() {
			_, err := service.UpdateCustomer("missing", &Customer{Name: "X"})
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListSuppliers", func() {
		BeforeEach(func() {
			db.suppliers["s1"] = &Supplier{ID: "s1", Name: "paz"}
			db.suppliers["s2"] = &Supplier{ID: "s2", Name: "Electra"}
			db.suppliers["s3"] = &Supplier{ID: "s3", Name: "Office Depot"}
		})

		It("sorts by name ignoring case", func() {
			suppliers, err := service.ListSuppliers()
			Expect(err).NotTo(HaveOccurred())
			Expect(suppliers).To(HaveLen(3))
			Expect(suppliers[0].Name).To(Equal("Electra"))
			Expect(suppliers[1].Name).To(Equal("Office Depot"))
			Expect(suppliers[2].Name).To(Equal("paz"))
		})
	})

	Describe("DeleteSupplier", func() {
		It("returns ErrNotFound for an unknown supplier", func() {
			Expect(service.DeleteSupplier("missing")).To(MatchError(ErrNotFound))
		})
	})

	Describe("ResolveSupplier", func() {
		var (
			name     string
			supplier *Supplier
			err      error
		)

		BeforeEach(func() {
			db.suppliers["s1"] = &Supplier{ID: "s1", Name: "Paz Oil Ltd"}
			db.suppliers["s2"] = &Supplier{ID: "s2", Name: "אופיס דיפו בע\"מ"}
		})

		JustBeforeEach(func() {
			supplier, err = service.ResolveSupplier(name)
		})

		When("the name matches exactly in another case", func() {
			BeforeEach(func() {
				name = "PAZ OIL LTD"
			})

			It("returns the existing supplier", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(supplier.ID).To(Equal("s1"))
				Expect(db.suppliers).To(HaveLen(2))
			})
		})

		When("the name is a near miss", func() {
			BeforeEach(func() {
				name = "Paz 0il Ltd"
			})

			It("returns the closest supplier", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(supplier.ID).To(Equal("s1"))
			})
		})

		When("a Hebrew name is a near miss", func() {
			BeforeEach(func() {
				name = "אופיס דיפו בעמ"
			})

			It("returns the closest supplier", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(supplier.ID).To(Equal("s2"))
			})
		})

		When("the name is new", func() {
			BeforeEach(func() {
				name = "Electra Air Conditioning"
			})

			It("creates a supplier", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(supplier.ID).To(Equal("id-1"))
				Expect(supplier.Name).To(Equal("Electra Air Conditioning"))
				Expect(db.suppliers).To(HaveKey("id-1"))
			})
		})

		When("the name is blank", func() {
			BeforeEach(func() {
				name = "   "
			})

			It("creates the unknown supplier", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(supplier.Name).To(Equal(UnknownSupplierName))
			})

			It("reuses the unknown supplier once it exists", func() {
				again, err := service.ResolveSupplier("")
				Expect(err).NotTo(HaveOccurred())
				Expect(again.ID).To(Equal(supplier.ID))
				Expect(db.suppliers).To(HaveLen(3))
			})
		})

		When("fuzzy matching is off", func() {
			BeforeEach(func() {
				name = "Paz 0il Ltd"
			})

			JustBeforeEach(func() {
				config := DefaultConfig()
				config.SupplierMatchDistance = 0
				service = NewServiceWithDeps(db, &mockTextExtractor{}, &mockFieldExtractor{}, newMockStorage(), config, idGen, timeSrc)
				supplier, err = service.ResolveSupplier(name)
			})

			It("only matches exact names", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(supplier.ID).NotTo(Equal("s1"))
				Expect(supplier.Name).To(Equal("Paz 0il Ltd"))
			})
		})
	})
})
