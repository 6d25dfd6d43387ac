package scanning

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockGenerator is a mock implementation of contentGenerator
type mockGenerator struct {
	reply string
	err   error
	parts []genai.Part
}

func (m *mockGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.parts = parts
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(m.reply)}},
		}},
	}, nil
}

var _ = Describe("Gemini", func() {
	var (
		generator *mockGenerator
		gemini    *Gemini
		text      string
		err       error
	)

	BeforeEach(func() {
		generator = &mockGenerator{reply: "```\nסה\"כ לתשלום 117.00\n```"}
	})

	JustBeforeEach(func() {
		gemini = &Gemini{model: generator}
		text, err = gemini.ExtractText(context.Background(), pngImage(), "image/png")
	})

	It("returns the cleaned transcript", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("סה\"כ לתשלום 117.00"))
	})

	It("sends the image with the prompt", func() {
		Expect(generator.parts).To(HaveLen(2))
		Expect(generator.parts[0]).To(BeAssignableToTypeOf(genai.Blob{}))
		Expect(generator.parts[1]).To(Equal(genai.Text(transcriptionPrompt)))
	})

	When("the model sees no text", func() {
		BeforeEach(func() {
			generator.reply = "  "
		})

		It("reports no text", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the model fails", func() {
		BeforeEach(func() {
			generator.err = errors.New("quota exceeded")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("quota exceeded")))
		})
	})

	It("closes without a client", func() {
		Expect(gemini.Close()).To(Succeed())
	})

	It("requires an api key", func() {
		_, err := NewGemini(context.Background(), "", "")
		Expect(err).To(HaveOccurred())
	})
})
