package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("content detection", func() {
	Describe("IsPDF", func() {
		It("recognises the PDF header", func() {
			Expect(IsPDF(textPDF("hello"))).To(BeTrue())
		})

		It("tolerates leading whitespace", func() {
			Expect(IsPDF([]byte("\r\n%PDF-1.7"))).To(BeTrue())
		})

		It("rejects other data", func() {
			Expect(IsPDF(pngImage())).To(BeFalse())
			Expect(IsPDF(nil)).To(BeFalse())
		})
	})

	Describe("IsImage", func() {
		It("accepts image types with parameters", func() {
			Expect(IsImage("Image/JPEG; charset=binary")).To(BeTrue())
			Expect(IsImage("image/heic")).To(BeTrue())
		})

		It("rejects documents", func() {
			Expect(IsImage("application/pdf")).To(BeFalse())
			Expect(IsImage("")).To(BeFalse())
		})
	})

	Describe("isHEICFormat", func() {
		It("detects the ftyp brand", func() {
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic0000"))).To(BeTrue())
			Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom0000"))).To(BeFalse())
			Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		})
	})

	Describe("preparePages", func() {
		It("passes PNG images through", func() {
			data := pngImage()
			pages, err := preparePages(data, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(Equal([][]byte{data}))
		})

		It("renders PDF pages", func() {
			pages, err := preparePages(textPDF("Total 50"), "application/pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(1))
			Expect(pages[0][:8]).To(Equal([]byte("\x89PNG\r\n\x1a\n")))
		})

		It("rejects unknown content", func() {
			_, err := preparePages([]byte("plain text"), "text/plain")
			Expect(err).To(MatchError(ErrUnsupportedContent))
		})

		It("rejects undecodable images", func() {
			_, err := preparePages([]byte("not a jpeg"), "image/jpeg")
			Expect(err).To(MatchError(ErrUnsupportedContent))
		})
	})
})
