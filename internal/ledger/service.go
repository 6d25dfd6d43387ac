package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/zombor/bookkeeping/internal/extraction"
	"github.com/zombor/bookkeeping/internal/scanning"
)

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// FieldExtractor reads expense fields out of receipt text
type FieldExtractor interface {
	Extract(text string) extraction.Fields
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config holds the service settings that come from flags
type Config struct {
	// DefaultCategory replaces scanned categories the ledger does not know
	DefaultCategory extraction.Category
	// SupplierMatchDistance is the largest edit distance at which a scanned
	// supplier name is taken to be an existing supplier. Zero means exact
	// matches only.
	SupplierMatchDistance int
	// AcceptImages allows photo uploads. Only useful with an OCR transcriber.
	AcceptImages bool
}

// DefaultConfig returns the settings used when no flags are given
func DefaultConfig() Config {
	return Config{
		DefaultCategory:       extraction.CategoryOther,
		SupplierMatchDistance: 2,
	}
}

// Service handles bookkeeping operations
type Service struct {
	db          DB
	text        scanning.TextExtractor
	fields      FieldExtractor
	storage     Storage
	config      Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID ids and the wall clock
func NewService(db DB, text scanning.TextExtractor, fields FieldExtractor, storage Storage, config Config) *Service {
	return NewServiceWithDeps(db, text, fields, storage, config, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, text scanning.TextExtractor, fields FieldExtractor, storage Storage, config Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	if !config.DefaultCategory.Valid() {
		config.DefaultCategory = extraction.CategoryOther
	}
	return &Service{
		db:          db,
		text:        text,
		fields:      fields,
		storage:     storage,
		config:      config,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}
