package scanning

import "context"

// UnknownVendor is what extractors report when no merchant name could be read.
const UnknownVendor = "Unknown"

// ReceiptData contains extracted information from a receipt
type ReceiptData struct {
	Vendor     string   `json:"vendor"`
	Amount     *float64 `json:"amount"` // nil when the total could not be read
	Date       string   `json:"date"`   // ISO 8601 format
	Confidence float64  `json:"confidence"`
	Category   string   `json:"category"`
}

// Extractor defines the interface for receipt extraction operations
type Extractor interface {
	// ExtractReceipt analyzes a receipt image/PDF and extracts vendor, amount, date and confidence
	ExtractReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close closes the extractor and releases resources
	Close() error
}
