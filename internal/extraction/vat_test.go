package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("DetectVAT", func() {
	DescribeTable("stated rates",
		func(text, want string) {
			vat := DetectVAT(text)
			Expect(vat.Charged).To(BeTrue())
			Expect(vat.Stated).To(BeTrue())
			Expect(vat.Rate.Equal(decimal.RequireFromString(want))).To(BeTrue(), vat.Rate.String())
		},
		Entry("Hebrew label then rate", "מע\"מ 17%", "17"),
		Entry("gershayim", "מע״מ: 18%", "18"),
		Entry("rate then label", "17% VAT", "17"),
		Entry("parenthesised", "VAT (18%)", "18"),
		Entry("fractional", "VAT 16.5%", "16.5"),
		Entry("skips an implausible rate", "VAT 25% ... VAT 17%", "17"),
	)

	When("VAT is mentioned without a rate", func() {
		It("is charged but not stated", func() {
			vat := DetectVAT("סה\"כ כולל מע\"מ 117")
			Expect(vat.Charged).To(BeTrue())
			Expect(vat.Stated).To(BeFalse())
		})
	})

	When("the only rate is above the maximum", func() {
		It("is charged but not stated", func() {
			vat := DetectVAT("VAT: 25%")
			Expect(vat.Charged).To(BeTrue())
			Expect(vat.Stated).To(BeFalse())
		})
	})

	When("VAT is never mentioned", func() {
		It("is not charged", func() {
			Expect(DetectVAT("Total 50")).To(Equal(VAT{}))
		})
	})
})
