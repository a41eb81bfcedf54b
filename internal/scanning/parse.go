package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
)

// parseReceiptJSON extracts the receipt object from a model response
func parseReceiptJSON(text string) (*model.Receipt, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var r model.Receipt
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if r.Header == nil && r.Items == nil && r.Payment == nil && r.Summary == nil {
		return nil, fmt.Errorf("response contains no receipt fields")
	}

	clean(&r)
	return &r, nil
}

// clean trims free text and drops fields only the discrepancy calculator may set
func clean(r *model.Receipt) {
	if h := r.Header; h != nil {
		h.ReceiptNumber = strings.TrimSpace(h.ReceiptNumber)
		h.Timestamp = strings.TrimSpace(h.Timestamp)
		h.StoreName = strings.TrimSpace(h.StoreName)
		h.StoreAddress = strings.TrimSpace(h.StoreAddress)
	}
	for i := range r.Items {
		r.Items[i].Description = strings.TrimSpace(r.Items[i].Description)
	}
	if p := r.Payment; p != nil {
		p.Currency = strings.TrimSpace(p.Currency)
		for i := range p.Methods {
			if last4 := p.Methods[i].CardLast4; last4 != nil {
				trimmed := strings.TrimSpace(*last4)
				p.Methods[i].CardLast4 = &trimmed
			}
		}
	}
	*r = r.WithoutDerived()
}
