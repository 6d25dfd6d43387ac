package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/bookkeeping/internal/extraction"
)

type formFile struct {
	name string
	data []byte
}

// multipartBody encodes files under one form field
func multipartBody(field string, files ...formFile) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	for _, f := range files {
		part, err := writer.CreateFormFile(field, f.name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(f.data)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(writer.Close()).To(Succeed())
	return &b, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		text        *mockTextExtractor
		fields      *mockFieldExtractor
		metrics     *mockMetrics
		config      ServerConfig
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		db.suppliers["s1"] = &Supplier{ID: "s1", Name: "Paz Oil Ltd"}
		db.customers["c1"] = &Customer{ID: "c1", Name: "Dana"}
		text = &mockTextExtractor{text: "receipt text"}
		fields = &mockFieldExtractor{fields: extraction.Fields{
			Date:          "2024-01-15",
			Amount:        decimal.NewFromInt(117),
			Supplier:      "Paz Oil Ltd",
			Category:      extraction.CategoryVehicle,
			VATRate:       decimal.NewFromInt(17),
			PaymentMethod: extraction.PaymentCash,
		}}
		metrics = &mockMetrics{}
		config = ServerConfig{Metrics: metrics}
	})

	JustBeforeEach(func() {
		timeSrc := &mockTimeSource{now: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}
		service := NewServiceWithDeps(db, text, fields, newMockStorage(), DefaultConfig(), &sequenceIDGenerator{}, timeSrc)
		server := NewServerWithMux(service, config, http.NewServeMux())

		ghttpServer = ghttp.NewServer()
		for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	doJSON := func(method, path, body string) *http.Response {
		return do(method, path, strings.NewReader(body), "application/json")
	}

	decode := func(resp *http.Response, v any) {
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	errorOf := func(resp *http.Response) string {
		var body map[string]string
		decode(resp, &body)
		return body["error"]
	}

	Describe("GET /", func() {
		It("lists the routes", func() {
			resp := do("GET", "/", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Status string   `json:"status"`
				Routes []string `json:"routes"`
			}
			decode(resp, &body)
			Expect(body.Status).To(Equal("ok"))
			Expect(body.Routes).To(ContainElement("POST /api/expenses/scan"))
		})

		It("returns 404 for unknown paths", func() {
			resp := do("GET", "/nope", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp := do("OPTIONS", "/api/expenses", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			config.BasicAuth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("rejects requests without credentials", func() {
			resp := do("GET", "/api/suppliers", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("rejects a wrong password", func() {
			req, _ := http.NewRequest("GET", ghttpServer.URL()+"/api/suppliers", nil)
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req, _ := http.NewRequest("GET", ghttpServer.URL()+"/api/suppliers", nil)
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("suppliers", func() {
		It("creates a supplier", func() {
			resp := doJSON("POST", "/api/suppliers", `{"name":"Electra","phone":"03-1234567"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created Supplier
			decode(resp, &created)
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.Phone).To(Equal("03-1234567"))
		})

		It("rejects a supplier without a name", func() {
			resp := doJSON("POST", "/api/suppliers", `{"phone":"03"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(errorOf(resp)).To(ContainSubstring("name is required"))
		})

		It("rejects malformed JSON", func() {
			resp := doJSON("POST", "/api/suppliers", `{`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown supplier", func() {
			resp := do("GET", "/api/suppliers/missing", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("deletes a supplier", func() {
			resp := do("DELETE", "/api/suppliers/s1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.suppliers).NotTo(HaveKey("s1"))
		})
	})

	Describe("customers", func() {
		It("updates a customer", func() {
			resp := doJSON("PUT", "/api/customers/c1", `{"name":"Dana Levi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.customers["c1"].Name).To(Equal("Dana Levi"))
		})

		It("lists customers", func() {
			resp := do("GET", "/api/customers", nil, "")
			var customers []*Customer
			decode(resp, &customers)
			Expect(customers).To(HaveLen(1))
		})
	})

	Describe("expenses", func() {
		It("creates an expense from a form-style body", func() {
			resp := doJSON("POST", "/api/expenses", `{
				"date": "2024-01-15",
				"supplierId": "s1",
				"category": "רכב",
				"amount": "117.00",
				"paymentMethod": "cash"
			}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created Expense
			decode(resp, &created)
			Expect(created.Category).To(Equal(extraction.CategoryVehicle))
			Expect(created.VAT.Equal(decimal.NewFromInt(17))).To(BeTrue())
			Expect(created.Date).To(BeTemporally("==", day(2024, 1, 15)))
		})

		It("rejects an unknown category", func() {
			resp := doJSON("POST", "/api/expenses", `{"date":"2024-01-15","supplierId":"s1","category":"Travel","amount":1,"paymentMethod":"cash"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown supplier", func() {
			resp := doJSON("POST", "/api/expenses", `{"date":"2024-01-15","supplierId":"s9","category":"Office","amount":1,"paymentMethod":"cash"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(errorOf(resp)).To(ContainSubstring("s9"))
		})

		When("expenses exist", func() {
			BeforeEach(func() {
				db.expenses["e1"] = &Expense{ID: "e1", Date: day(2024, 1, 5), SupplierID: "s1", Amount: decimal.NewFromInt(10)}
				db.expenses["e2"] = &Expense{ID: "e2", Date: day(2024, 1, 6), SupplierID: "s1", Amount: decimal.NewFromInt(20)}
			})

			It("pages the list", func() {
				resp := do("GET", "/api/expenses?limit=1&page=2", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var page Page[*Expense]
				decode(resp, &page)
				Expect(page.Data).To(HaveLen(1))
				Expect(page.Data[0].ID).To(Equal("e1"))
				Expect(page.Pagination.Total).To(Equal(2))
			})

			It("rejects a bad filter", func() {
				resp := do("GET", "/api/expenses?minAmount=lots", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("deletes them all", func() {
				resp := do("DELETE", "/api/expenses", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var body map[string]int
				decode(resp, &body)
				Expect(body["deletedCount"]).To(Equal(2))
			})

			It("exports csv", func() {
				resp := do("GET", "/api/expenses/export?format=csv", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/csv"))
				Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("expenses.csv"))
			})

			It("returns 404 when deleting an unknown expense", func() {
				resp := do("DELETE", "/api/expenses/missing", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("incomes", func() {
		body := `{"receiptNumber":"1001","date":"2024-01-15","customerId":"c1","amount":1170,"vat":17,"payment":{"method":"transfer"}}`

		It("creates an income", func() {
			resp := doJSON("POST", "/api/incomes", body)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created Income
			decode(resp, &created)
			Expect(created.Payment.Amount.Equal(decimal.NewFromInt(1170))).To(BeTrue())
		})

		It("returns 409 for a duplicate receipt number", func() {
			db.incomes["i0"] = &Income{ID: "i0", ReceiptNumber: "1001"}
			resp := doJSON("POST", "/api/incomes", body)
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("POST /api/expenses/scan", func() {
		It("returns the extracted fields", func() {
			b, contentType := multipartBody("file", formFile{"receipt.pdf", pdfBytes})
			resp := do("POST", "/api/expenses/scan", b, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result ScanResult
			decode(resp, &result)
			Expect(result.Fields.Supplier).To(Equal("Paz Oil Ltd"))
			Expect(result.Text).To(Equal("receipt text"))
			Expect(metrics.scans).To(Equal([]bool{true}))
		})

		It("rejects files that are not PDFs", func() {
			b, contentType := multipartBody("file", formFile{"notes.txt", []byte("hello")})
			resp := do("POST", "/api/expenses/scan", b, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusUnsupportedMediaType))
			Expect(metrics.scans).To(Equal([]bool{false}))
		})

		It("requires a file", func() {
			b, contentType := multipartBody("other", formFile{"receipt.pdf", pdfBytes})
			resp := do("POST", "/api/expenses/scan", b, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("the upload is too large", func() {
			BeforeEach(func() {
				config.MaxUploadBytes = 64
			})

			It("rejects it", func() {
				b, contentType := multipartBody("file", formFile{"receipt.pdf", bytes.Repeat([]byte("x"), 1024)})
				resp := do("POST", "/api/expenses/scan", b, contentType)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("POST /api/expenses/upload", func() {
		It("returns 201 when every file is recorded", func() {
			b, contentType := multipartBody("files", formFile{"a.pdf", pdfBytes}, formFile{"b.pdf", pdfBytes})
			resp := do("POST", "/api/expenses/upload", b, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var body struct {
				Results []ScanOutcome `json:"results"`
			}
			decode(resp, &body)
			Expect(body.Results).To(HaveLen(2))
			Expect(db.expenses).To(HaveLen(2))
		})

		It("returns 207 when some files fail", func() {
			b, contentType := multipartBody("files", formFile{"a.pdf", pdfBytes}, formFile{"notes.txt", []byte("hello")})
			resp := do("POST", "/api/expenses/upload", b, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusMultiStatus))

			var body struct {
				Results []ScanOutcome `json:"results"`
			}
			decode(resp, &body)
			Expect(body.Results[0].Expense).NotTo(BeNil())
			Expect(body.Results[1].Error).NotTo(BeEmpty())
			Expect(metrics.scans).To(Equal([]bool{true, false}))
		})
	})

	Describe("POST /api/incomes/import", func() {
		It("returns the import summary", func() {
			data := workbook(
				[]any{"תאריך", "לקוח", "סכום", "אופן התשלום", "תיאור"},
				[]any{45306, "Dana", 1170, "transfer", "January"},
			)
			b, contentType := multipartBody("file", formFile{"incomes.xlsx", data})
			resp := do("POST", "/api/incomes/import", b, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var summary ImportSummary
			decode(resp, &summary)
			Expect(summary.Imported).To(Equal(1))
		})
	})

	Describe("reports", func() {
		It("requires a period", func() {
			resp := do("GET", "/api/reports/income-vs-expense", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown grouping", func() {
			resp := do("GET", "/api/reports/expense-analysis?groupBy=color&startDate=2024-01-01&endDate=2024-01-31", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("groups expenses", func() {
			db.expenses["e1"] = &Expense{ID: "e1", Date: day(2024, 1, 5), Category: extraction.CategoryOffice, Amount: decimal.NewFromInt(10)}
			resp := do("GET", "/api/reports/expense-analysis?groupBy=category&startDate=2024-01-01&endDate=2024-01-31", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var groups []Group
			decode(resp, &groups)
			Expect(groups).To(HaveLen(1))
			Expect(groups[0].Key).To(Equal("Office"))
		})
	})

	Describe("metrics", func() {
		BeforeEach(func() {
			config.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "bookkeeping_up 1\n")
			})
		})

		It("serves the metrics handler", func() {
			resp := do("GET", "/metrics", nil, "")
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("bookkeeping_up"))
		})

		It("records requests under their route pattern", func() {
			do("GET", "/api/suppliers/missing", nil, "")
			Expect(metrics.routes).To(Equal([]string{"GET /api/suppliers/{id} 404"}))
		})
	})
})

var _ = Describe("Server.scanFiles", func() {
	It("keeps outcomes in upload order when a file cannot be read", func() {
		db := newMockDB()
		fields := &mockFieldExtractor{fields: extraction.Fields{
			Date:          "2024-01-15",
			Amount:        decimal.NewFromInt(117),
			Supplier:      "Paz Oil Ltd",
			Category:      extraction.CategoryVehicle,
			PaymentMethod: extraction.PaymentCash,
		}}
		timeSrc := &mockTimeSource{now: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}
		service := NewServiceWithDeps(db, &mockTextExtractor{text: "receipt text"}, fields, newMockStorage(), DefaultConfig(), &sequenceIDGenerator{}, timeSrc)
		server := NewServerWithMux(service, ServerConfig{}, http.NewServeMux())

		files := []*multipart.FileHeader{
			{Filename: "a.pdf"},
			{Filename: "broken.pdf"},
			{Filename: "c.pdf"},
		}
		read := func(fh *multipart.FileHeader) (Upload, error) {
			if fh.Filename == "broken.pdf" {
				return Upload{}, errors.New("unexpected EOF")
			}
			return Upload{Filename: fh.Filename, ContentType: "application/pdf", Data: pdfBytes}, nil
		}

		outcomes := server.scanFiles(context.Background(), files, read)
		Expect(outcomes).To(HaveLen(3))
		Expect(outcomes[0].Filename).To(Equal("a.pdf"))
		Expect(outcomes[0].Expense).NotTo(BeNil())
		Expect(outcomes[1].Filename).To(Equal("broken.pdf"))
		Expect(outcomes[1].Error).To(ContainSubstring("unexpected EOF"))
		Expect(outcomes[2].Filename).To(Equal("c.pdf"))
		Expect(outcomes[2].Expense).NotTo(BeNil())
	})
})
