package scanning

import (
	"context"
	"errors"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
)

// ErrUnsupportedContent is returned when a provider cannot read the given media type
var ErrUnsupportedContent = errors.New("content type not supported by scanner")

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt reads a receipt image or PDF and extracts its structured content
	ScanReceipt(ctx context.Context, data []byte, contentType string) (*model.Receipt, error)
	// Name identifies the provider and model, e.g. "gemini/gemini-2.5-pro"
	Name() string
	// Close closes the scanner and releases resources
	Close() error
}
