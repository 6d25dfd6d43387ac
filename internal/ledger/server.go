package ledger

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultMaxUploadBytes = 20 << 20

// Metrics records request and scan outcomes
type Metrics interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	ObserveScan(ok bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(string, string, int, time.Duration) {}
func (nopMetrics) ObserveScan(bool)                                  {}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// ServerConfig holds the HTTP settings
type ServerConfig struct {
	BasicAuth BasicAuth
	// MaxUploadBytes caps the size of a multipart request
	MaxUploadBytes int64
	// Metrics is told about every request; nil records nothing
	Metrics Metrics
	// MetricsHandler is served on /metrics when set
	MetricsHandler http.Handler
}

// Server handles HTTP requests for the ledger
type Server struct {
	service *Service
	config  ServerConfig
	metrics Metrics
	mux     *http.ServeMux
	routes  []string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, config ServerConfig) *Server {
	return NewServerWithMux(service, config, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, config ServerConfig, mux *http.ServeMux) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		service: service,
		config:  config,
		metrics: config.Metrics,
		mux:     mux,
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	auth := s.config.BasicAuth
	if auth.Username == "" && auth.Password == "" {
		return true // No auth required if not configured
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(auth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Bookkeeping"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// statusRecorder remembers the status code written through it
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument reports each request under the route pattern that served it
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.ObserveRequest(r.Method, r.Pattern, rec.status, time.Since(start))
	}
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, s.instrument(s.requireAuth(h)))
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.handle("GET /api/customers/{id}", s.handleGetCustomer)
	s.handle("PUT /api/customers/{id}", s.handleUpdateCustomer)
	s.handle("DELETE /api/customers/{id}", s.handleDeleteCustomer)
	s.handle("GET /api/customers", s.handleListCustomers)
	s.handle("POST /api/customers", s.handleCreateCustomer)

	s.handle("GET /api/suppliers/{id}", s.handleGetSupplier)
	s.handle("PUT /api/suppliers/{id}", s.handleUpdateSupplier)
	s.handle("DELETE /api/suppliers/{id}", s.handleDeleteSupplier)
	s.handle("GET /api/suppliers", s.handleListSuppliers)
	s.handle("POST /api/suppliers", s.handleCreateSupplier)

	s.handle("POST /api/expenses/scan", s.handleScanReceipt)
	s.handle("POST /api/expenses/upload", s.handleUploadReceipts)
	s.handle("POST /api/expenses/import", s.handleImportExpenses)
	s.handle("GET /api/expenses/export", s.handleExportExpenses)
	s.handle("GET /api/expenses/{id}", s.handleGetExpense)
	s.handle("PUT /api/expenses/{id}", s.handleUpdateExpense)
	s.handle("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	s.handle("GET /api/expenses", s.handleListExpenses)
	s.handle("POST /api/expenses", s.handleCreateExpense)
	s.handle("DELETE /api/expenses", s.handleDeleteAllExpenses)

	s.handle("POST /api/incomes/import", s.handleImportIncomes)
	s.handle("GET /api/incomes/{id}", s.handleGetIncome)
	s.handle("PUT /api/incomes/{id}", s.handleUpdateIncome)
	s.handle("DELETE /api/incomes/{id}", s.handleDeleteIncome)
	s.handle("GET /api/incomes", s.handleListIncomes)
	s.handle("POST /api/incomes", s.handleCreateIncome)
	s.handle("DELETE /api/incomes", s.handleDeleteAllIncomes)

	s.handle("GET /api/reports/income-vs-expense", s.handleIncomeVsExpense)
	s.handle("GET /api/reports/income-analysis", s.handleIncomeAnalysis)
	s.handle("GET /api/reports/expense-analysis", s.handleExpenseAnalysis)

	s.handle("GET /api/categories", s.handleListCategories)

	if s.config.MetricsHandler != nil {
		s.mux.Handle("GET /metrics", s.requireAuth(s.config.MetricsHandler.ServeHTTP))
	}

	s.handle("GET /{$}", s.handleIndex)
}

// Start serves on addr until ctx is cancelled, then waits for in-flight
// requests to finish
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
