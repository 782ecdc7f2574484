package receipt

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DuplicateConfig tunes duplicate detection
type DuplicateConfig struct {
	AmountTolerance      float64 `yaml:"amount_tolerance"`
	DateWindowDays       int     `yaml:"date_window_days"`
	VendorMatchThreshold float64 `yaml:"vendor_match_threshold"`
	VendorWeight         float64 `yaml:"vendor_weight"`
	AmountWeight         float64 `yaml:"amount_weight"`
	MinSimilarity        float64 `yaml:"min_similarity"`
}

// DefaultDuplicateConfig returns the standard duplicate thresholds
func DefaultDuplicateConfig() DuplicateConfig {
	return DuplicateConfig{
		AmountTolerance:      0.02,
		DateWindowDays:       3,
		VendorMatchThreshold: 0.8,
		VendorWeight:         0.6,
		AmountWeight:         0.4,
		MinSimilarity:        0.75,
	}
}

// amountEpsilon keeps the relative difference defined when both amounts are zero
var amountEpsilon = decimal.NewFromFloat(0.01)

// DuplicateDetector finds existing receipts that look like the same purchase
type DuplicateDetector struct {
	cfg DuplicateConfig
}

// NewDuplicateDetector creates a detector with the given thresholds
func NewDuplicateDetector(cfg DuplicateConfig) *DuplicateDetector {
	return &DuplicateDetector{cfg: cfg}
}

// Detect compares candidate against existing receipts of the same owner and returns the
// likely duplicates, most similar first. It does not modify its inputs.
func (d *DuplicateDetector) Detect(candidate *Receipt, existing []*Receipt) []DuplicateCandidate {
	if candidate == nil || isBlankVendor(candidate.Vendor) {
		return nil
	}
	vendor := normalizeVendor(candidate.Vendor)

	var matches []DuplicateCandidate
	for _, other := range existing {
		if other == nil || other.Void {
			continue
		}
		if other.OwnerID != candidate.OwnerID {
			continue
		}
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if isBlankVendor(other.Vendor) {
			continue
		}

		diff := relativeAmountDiff(candidate.Amount, other.Amount)
		if diff > d.cfg.AmountTolerance {
			continue
		}
		if calendarDaysApart(candidate.Date, other.Date) > d.cfg.DateWindowDays {
			continue
		}

		otherVendor := normalizeVendor(other.Vendor)
		vendorSim := vendorSimilarity(vendor, otherVendor)
		if vendor != otherVendor && vendorSim < d.cfg.VendorMatchThreshold {
			continue
		}

		score := d.cfg.VendorWeight*vendorSim + d.cfg.AmountWeight*(1-diff)
		score = math.Max(0, math.Min(1, score))
		if score < d.cfg.MinSimilarity {
			continue
		}
		matches = append(matches, DuplicateCandidate{Receipt: other, Similarity: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Receipt.ID < matches[j].Receipt.ID
	})
	return matches
}

// relativeAmountDiff is |a-b| / max(|a|, |b|, epsilon)
func relativeAmountDiff(a, b decimal.Decimal) float64 {
	denom := decimal.Max(a.Abs(), b.Abs(), amountEpsilon)
	f, _ := a.Sub(b).Abs().Div(denom).Float64()
	return f
}

// calendarDaysApart counts whole calendar days between the dates of a and b
func calendarDaysApart(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(math.Round(da.Sub(db).Hours() / 24))
	if days < 0 {
		days = -days
	}
	return days
}
