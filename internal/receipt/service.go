package receipt

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radityaharya/workers-receipt-parser/internal/discrepancy"
	"github.com/radityaharya/workers-receipt-parser/internal/export"
	"github.com/radityaharya/workers-receipt-parser/internal/media"
	"github.com/radityaharya/workers-receipt-parser/internal/metrics"
	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/scanning"
	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

// ErrScanFailed wraps errors from the vision model
var ErrScanFailed = errors.New("scan failed")

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for parse results
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Service scans uploaded receipts, checks them and keeps the history
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	validator   *validation.Validator
	metrics     *metrics.Metrics
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with random IDs and the system clock.
// m may be nil to disable metrics.
func NewService(db DB, scanner scanning.Scanner, storage Storage, validator *validation.Validator, m *metrics.Metrics) *Service {
	return NewServiceWithDeps(db, scanner, storage, validator, m, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, validator *validation.Validator, m *metrics.Metrics, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		validator:   validator,
		metrics:     m,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Rules returns the thresholds the service validates with
func (s *Service) Rules() validation.Config {
	return s.validator.Config()
}

// sanitizeFilename cleans up phone-generated file names and bounds their length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	return base + ext
}

// ValidateReceipt annotates r with its discrepancy and validates it. Any
// discrepancy already present on r is discarded first. Nothing is stored.
func (s *Service) ValidateReceipt(r model.Receipt) ParseResult {
	annotated := discrepancy.Calculate(r.WithoutDerived())
	result := s.validator.Validate(annotated)
	s.metrics.ObserveValidation(result)

	return ParseResult{
		Receipt:    annotated,
		Validation: result,
	}
}

// ParseReceipt inspects and stores an upload, scans it, validates the result
// and records it in the history. The stored file is removed if a later step fails.
func (s *Service) ParseReceipt(ctx context.Context, filename string, data []byte, contentType string) (*ParseResult, error) {
	info, err := media.Inspect(data, contentType)
	if err != nil {
		s.metrics.ObserveParse(metrics.OutcomeRejected)
		return nil, fmt.Errorf("inspecting upload: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		s.metrics.ObserveParse(metrics.OutcomeStoreFailed)
		return nil, fmt.Errorf("saving file: %w", err)
	}

	start := time.Now()
	scanned, err := s.scanner.ScanReceipt(ctx, data, info.ContentType)
	s.metrics.ObserveScan(s.scanner.Name(), time.Since(start))
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", info.ContentType,
			"file_size", len(data),
			"scanner", s.scanner.Name(),
			"error", err,
		)
		s.removeFile(savedPath)
		s.metrics.ObserveParse(metrics.OutcomeScanFailed)
		return nil, fmt.Errorf("%w: %w", ErrScanFailed, err)
	}

	result := s.ValidateReceipt(*scanned)
	result.ID = id
	result.Filename = savedPath
	result.ContentType = info.ContentType
	result.Media = &info
	result.Scanner = s.scanner.Name()
	result.CreatedAt = now

	if err := s.db.SaveResult(&result); err != nil {
		s.removeFile(savedPath)
		s.metrics.ObserveParse(metrics.OutcomeStoreFailed)
		return nil, fmt.Errorf("saving parse result: %w", err)
	}

	s.metrics.ObserveParse(metrics.OutcomeOK)
	slog.Info("Parsed receipt",
		"id", id,
		"store", result.StoreName(),
		"valid", result.Validation.Valid,
		"issues", len(result.Validation.Issues),
		"confidence", result.Validation.ConfidenceScore,
	)
	return &result, nil
}

func (s *Service) removeFile(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to clean up file", "filename", path, "error", err)
	}
}

// GetResult retrieves a parse result by ID
func (s *Service) GetResult(id string) (*ParseResult, error) {
	result, err := s.db.GetResult(id)
	if err != nil {
		return nil, fmt.Errorf("getting parse result: %w", err)
	}
	return result, nil
}

// ListResults returns the history, newest first
func (s *Service) ListResults() ([]*ParseResult, error) {
	results, err := s.db.ListResults()
	if err != nil {
		return nil, fmt.Errorf("listing parse results: %w", err)
	}
	slices.SortStableFunc(results, func(a, b *ParseResult) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return results, nil
}

// DeleteResult removes a parse result and its file
func (s *Service) DeleteResult(id string) error {
	result, err := s.db.GetResult(id)
	if err != nil {
		return fmt.Errorf("getting parse result for deletion: %w", err)
	}

	if err := s.storage.Delete(result.Filename); err != nil {
		// The history entry is removed even if the file is already gone
		slog.Warn("Failed to delete file", "filename", result.Filename, "error", err)
	}

	if err := s.db.DeleteResult(id); err != nil {
		return fmt.Errorf("deleting parse result: %w", err)
	}
	return nil
}

// GetResultFile returns the uploaded file and its content type
func (s *Service) GetResultFile(id string) ([]byte, string, error) {
	result, err := s.db.GetResult(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting parse result: %w", err)
	}

	data, err := s.storage.Get(result.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, result.ContentType, nil
}

// Export writes the whole history as an XLSX workbook
func (s *Service) Export(w io.Writer) error {
	results, err := s.ListResults()
	if err != nil {
		return err
	}

	records := make([]export.Record, len(results))
	for i, r := range results {
		records[i] = export.Record{
			ID:         r.ID,
			CreatedAt:  r.CreatedAt,
			Receipt:    r.Receipt,
			Validation: r.Validation,
		}
	}
	if err := export.WriteXLSX(w, records); err != nil {
		return fmt.Errorf("exporting parse results: %w", err)
	}
	return nil
}
