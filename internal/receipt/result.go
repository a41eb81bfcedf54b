package receipt

import (
	"time"

	"github.com/radityaharya/workers-receipt-parser/internal/media"
	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

// ParseResult is a receipt annotated by the discrepancy calculator together with
// its validation outcome. Encoded as JSON, the receipt fields sit at the top
// level next to "validation".
type ParseResult struct {
	ID          string      `json:"id,omitempty"`
	Filename    string      `json:"filename,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Media       *media.Info `json:"media,omitempty"`
	Scanner     string      `json:"scanner,omitempty"`

	model.Receipt

	Validation validation.Result `json:"validation"`
	CreatedAt  time.Time         `json:"created_at,omitzero"`
}
