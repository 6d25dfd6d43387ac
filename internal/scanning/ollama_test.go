package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server      *ghttp.Server
		ollama      *Ollama
		image       []byte
		contentType string
		text        string
		err         error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		image = pngImage()
		contentType = "image/png"
		var newErr error
		ollama, newErr = NewOllama(server.URL(), "qwen2.5vl")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = ollama.ExtractText(context.Background(), image, contentType)
	})

	When("the model answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("qwen2.5vl"))
					Expect(req.Stream).To(BeFalse())
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(ConsistOf(base64.StdEncoding.EncodeToString(image)))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "Cafe Joe\nTotal 45.00"},
					Done:    true,
				}),
			))
		})

		It("returns the transcript", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Cafe Joe\nTotal 45.00"))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the model returns nothing", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{Done: true}))
		})

		It("reports no text", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the upload is not an image", func() {
		BeforeEach(func() {
			image = []byte("plain text")
			contentType = "text/plain"
		})

		It("does not call the API", func() {
			Expect(err).To(MatchError(ErrUnsupportedContent))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})
