package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/bookkeeping/internal/extraction"
	"github.com/zombor/bookkeeping/internal/ledger"
	"github.com/zombor/bookkeeping/internal/logging"
	"github.com/zombor/bookkeeping/internal/metrics"
	"github.com/zombor/bookkeeping/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	opts, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if opts.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger, err := logging.New(os.Stderr, opts.logFormat, opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

// parseFlags reads flags, BOOKKEEPING_* environment variables and the
// optional config file
func parseFlags(args []string) (options, *ff.FlagSet, error) {
	fs := ff.NewFlagSet("bookkeeping")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "bookkeeping.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./uploads", "Directory for uploads while they are read")
		pdfEngine       = fs.StringLong("pdf-engine", "fitz", "PDF text engine: 'fitz' (MuPDF) or 'pure' (no cgo)")
		ocr             = fs.StringLong("ocr", "none", "OCR fallback for scanned receipts and photos: 'none', 'gemini' or 'ollama'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name (e.g., qwen2.5vl, llama3.2-vision, llava)")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat       = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		defaultVATRate  = fs.StringLong("default-vat-rate", "17", "VAT rate assumed when a receipt mentions VAT without a rate")
		noEvidenceRate  = fs.StringLong("vat-rate-without-evidence", "0", "VAT rate assumed when a receipt never mentions VAT")
		defaultCategory = fs.StringLong("default-category", string(extraction.CategoryOther), "Category for receipts that match no keyword")
		matchDistance   = fs.IntLong("supplier-match-distance", 2, "Largest edit distance at which a scanned supplier is an existing one")
		maxUploadMB     = fs.IntLong("max-upload-mb", 20, "Largest accepted upload in megabytes")
		_               = fs.StringLong("config", "", "Config file with one 'flag value' per line (optional)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("BOOKKEEPING"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		return options{}, fs, err
	}

	return options{
		port:            *port,
		dbPath:          *dbPath,
		storagePath:     *storagePath,
		pdfEngine:       *pdfEngine,
		ocr:             *ocr,
		geminiKey:       *geminiKey,
		geminiModel:     *geminiModel,
		ollamaURL:       *ollamaURL,
		ollamaModel:     *ollamaModel,
		authUser:        *authUser,
		authPass:        *authPass,
		logLevel:        *logLevel,
		logFormat:       *logFormat,
		defaultVATRate:  *defaultVATRate,
		noEvidenceRate:  *noEvidenceRate,
		defaultCategory: *defaultCategory,
		matchDistance:   *matchDistance,
		maxUploadMB:     *maxUploadMB,
		showVersion:     *showVersion,
	}, fs, nil
}

type options struct {
	port            int
	dbPath          string
	storagePath     string
	pdfEngine       string
	ocr             string
	geminiKey       string
	geminiModel     string
	ollamaURL       string
	ollamaModel     string
	authUser        string
	authPass        string
	logLevel        string
	logFormat       string
	defaultVATRate  string
	noEvidenceRate  string
	defaultCategory string
	matchDistance   int
	maxUploadMB     int
	showVersion     bool
}

func run(ctx context.Context, opts options) error {
	policy, err := extractionPolicy(opts)
	if err != nil {
		return err
	}
	category := policy.DefaultCategory

	recorder := metrics.NewRecorder()
	extractor := extraction.NewExtractor(
		extraction.WithPolicy(policy),
		extraction.WithLogger(slog.Default()),
		extraction.WithObserver(recorder),
	)

	// Initialize database
	slog.Info("Initializing database...", "path", opts.dbPath)
	db, err := ledger.NewBoltDB(opts.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	text, err := newTextExtractor(ctx, opts)
	if err != nil {
		return err
	}
	defer text.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "path", opts.storagePath)
	store, err := ledger.NewLocalStorage(opts.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	config := ledger.DefaultConfig()
	config.DefaultCategory = category
	config.SupplierMatchDistance = opts.matchDistance
	config.AcceptImages = opts.ocr != "none"
	service := ledger.NewService(db, text, extractor, store, config)

	server := ledger.NewServer(service, ledger.ServerConfig{
		BasicAuth: ledger.BasicAuth{
			Username: opts.authUser,
			Password: opts.authPass,
		},
		MaxUploadBytes: int64(opts.maxUploadMB) << 20,
		Metrics:        recorder,
		MetricsHandler: recorder.Handler(),
	})

	addr := fmt.Sprintf(":%d", opts.port)
	slog.Info("Server starting", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if opts.authUser != "" || opts.authPass != "" {
		slog.Info("Basic auth enabled", "user", opts.authUser)
	}

	if err := server.Start(ctx, addr); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("Shut down")
	return nil
}

// extractionPolicy builds the extraction defaults from the flags
func extractionPolicy(opts options) (extraction.Policy, error) {
	policy := extraction.DefaultPolicy()

	category, err := extraction.ParseCategory(opts.defaultCategory)
	if err != nil {
		return policy, fmt.Errorf("default category: %w", err)
	}
	policy.DefaultCategory = category

	for _, rate := range []struct {
		flag  string
		value string
		dest  *decimal.Decimal
	}{
		{"default-vat-rate", opts.defaultVATRate, &policy.VATRateWhenUnstated},
		{"vat-rate-without-evidence", opts.noEvidenceRate, &policy.VATRateWithoutEvidence},
	} {
		v, err := decimal.NewFromString(rate.value)
		if err != nil {
			return policy, fmt.Errorf("%s %q: %w", rate.flag, rate.value, err)
		}
		*rate.dest = v
	}

	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("extraction defaults: %w", err)
	}
	return policy, nil
}

// newTextExtractor builds the PDF text engine, followed by the OCR
// transcriber behind a circuit breaker when one is configured
func newTextExtractor(ctx context.Context, opts options) (scanning.TextExtractor, error) {
	var engine scanning.TextExtractor
	switch opts.pdfEngine {
	case "fitz":
		engine = scanning.NewFitz()
	case "pure":
		engine = scanning.NewPurePDF()
	default:
		return nil, fmt.Errorf("invalid pdf engine %q: want fitz or pure", opts.pdfEngine)
	}

	var transcriber scanning.TextExtractor
	switch opts.ocr {
	case "none":
		slog.Info("OCR disabled, scanned receipts will not be read")
		return engine, nil
	case "gemini":
		apiKey := opts.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini OCR...", "model", opts.geminiModel)
		g, err := scanning.NewGemini(ctx, apiKey, opts.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		transcriber = g
	case "ollama":
		slog.Info("Initializing Ollama OCR...", "url", opts.ollamaURL, "model", opts.ollamaModel)
		o, err := scanning.NewOllama(opts.ollamaURL, opts.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		transcriber = o
	default:
		return nil, fmt.Errorf("invalid ocr %q: want none, gemini or ollama", opts.ocr)
	}

	return scanning.NewChain(
		engine,
		scanning.NewBreaker(transcriber, scanning.DefaultBreakerSettings(opts.ocr)),
	), nil
}
