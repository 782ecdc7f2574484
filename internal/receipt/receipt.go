package receipt

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the canonical expense category of a receipt
type Category string

const (
	CategoryMaterials      Category = "materials"
	CategoryFuel           Category = "fuel"
	CategoryEquipment      Category = "equipment"
	CategorySubcontractors Category = "subcontractors"
	CategoryMisc           Category = "misc"
)

// Categories lists every canonical category in display order
var Categories = []Category{
	CategoryMaterials,
	CategoryFuel,
	CategoryEquipment,
	CategorySubcontractors,
	CategoryMisc,
}

var categoryAliases = map[string]Category{
	"materials":      CategoryMaterials,
	"material":       CategoryMaterials,
	"fuel":           CategoryFuel,
	"gas":            CategoryFuel,
	"gas/fuel":       CategoryFuel,
	"equipment":      CategoryEquipment,
	"tools":          CategoryEquipment,
	"tool":           CategoryEquipment,
	"subcontractors": CategorySubcontractors,
	"subcontractor":  CategorySubcontractors,
	"labor":          CategorySubcontractors,
	"misc":           CategoryMisc,
	"other":          CategoryMisc,
	"others":         CategoryMisc,
	"":               CategoryMisc,
}

// ParseCategory maps free-text category names (including legacy UI labels) to a canonical
// category. The second return value is false when the name is not recognized, in which case
// CategoryMisc is returned.
func ParseCategory(s string) (Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return CategoryMisc, false
	}
	return c, true
}

// Valid reports whether c is one of the canonical categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Flag is an advisory data-quality tag attached to a receipt
type Flag string

const (
	FlagMissingVendor     Flag = "missing_vendor"
	FlagMissingAmount     Flag = "missing_amount"
	FlagPossibleDuplicate Flag = "possible_duplicate"
	FlagPossibleRefund    Flag = "possible_refund"
	FlagUnusuallyHigh     Flag = "unusually_high"
)

// UnknownVendor is the sentinel extraction services use for an unreadable merchant
const UnknownVendor = "Unknown"

// Receipt is a document record of a vendor expense. It is never revenue; job profit only
// sees receipts through the job's receipt expense total.
type Receipt struct {
	ID                  string          `json:"id"`
	OwnerID             string          `json:"owner_id"`
	SubmittedBy         string          `json:"submitted_by,omitempty"`
	JobID               string          `json:"job_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Vendor              string          `json:"vendor"`
	Category            Category        `json:"category"`
	Date                time.Time       `json:"date"`
	ImageURL            string          `json:"image_url,omitempty"`
	ContentType         string          `json:"content_type,omitempty"`
	Notes               string          `json:"notes"`
	AIProcessed         bool            `json:"ai_processed"`
	AIConfidence        float64         `json:"ai_confidence"`
	AIFlags             []Flag          `json:"ai_flags"`
	AISuggestedCategory Category        `json:"ai_suggested_category,omitempty"`
	CategoryConfidence  float64         `json:"category_confidence"`
	Void                bool            `json:"void,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// HasFlag reports whether the receipt carries the given flag
func (r *Receipt) HasFlag(f Flag) bool {
	for _, have := range r.AIFlags {
		if have == f {
			return true
		}
	}
	return false
}

// Draft is the raw material for a receipt: extracted or hand-entered fields before
// categorization, duplicate detection and flagging.
type Draft struct {
	ID          string
	JobID       string
	Vendor      string
	Amount      decimal.Decimal
	AmountKnown bool
	Date        time.Time
	Category    string
	Notes       string
	ImageURL    string
	ContentType string
	AIProcessed bool
	Confidence  float64
}

// DuplicateCandidate pairs an existing receipt with its similarity to a candidate
type DuplicateCandidate struct {
	Receipt    *Receipt `json:"receipt"`
	Similarity float64  `json:"similarity"`
}

func sortNewestFirst(receipts []*Receipt) {
	sort.SliceStable(receipts, func(i, j int) bool {
		if !receipts[i].Date.Equal(receipts[j].Date) {
			return receipts[i].Date.After(receipts[j].Date)
		}
		return receipts[i].ID < receipts[j].ID
	})
}
