package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// defaultConfidence is assumed when a model returns fields without a confidence score.
const defaultConfidence = 0.5

// rawReceiptData mirrors the model's JSON before normalization.
// Models are inconsistent about number formatting, so amount and confidence stay raw.
type rawReceiptData struct {
	Vendor     string          `json:"vendor"`
	Title      string          `json:"title"`
	Date       string          `json:"date"`
	Amount     json.RawMessage `json:"amount"`
	Category   string          `json:"category"`
	Confidence json.RawMessage `json:"confidence"`
}

// parseReceiptJSON parses the JSON response from an extraction model
func parseReceiptJSON(text string) (*ReceiptData, error) {
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
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw rawReceiptData
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data := &ReceiptData{
		Vendor:   strings.TrimSpace(raw.Vendor),
		Date:     normalizeDate(raw.Date),
		Amount:   parseNumber(raw.Amount),
		Category: strings.ToLower(strings.TrimSpace(raw.Category)),
	}

	// Older prompts asked for "title"
	if data.Vendor == "" {
		data.Vendor = strings.TrimSpace(raw.Title)
	}
	if data.Vendor == "" {
		data.Vendor = UnknownVendor
	}

	data.Confidence = defaultConfidence
	if c := parseNumber(raw.Confidence); c != nil {
		data.Confidence = clamp01(*c)
	}

	return data, nil
}

// normalizeDate converts common receipt date formats to YYYY-MM-DD.
// Returns an empty string when the date cannot be read.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01/02/06",
		"01-02-2006",
		"02-01-2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

// parseNumber accepts JSON numbers and currency-formatted strings like "$1,204.50".
// Returns nil for null, empty, unparsable or non-finite values.
func parseNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finite(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

// finite drops the "inf" and "NaN" spellings strconv accepts
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
