package receipt

import (
	"sort"

	"github.com/shopspring/decimal"
)

// refundKeywords mark credits and returns when found in vendor or notes
var refundKeywords = []string{"refund", "return", "credit", "reversal", "reimburse"}

// FlagConfig tunes the unusually_high check
type FlagConfig struct {
	HighMultiplier float64 `yaml:"high_multiplier"`
	TrailingWindow int     `yaml:"trailing_window"`
	MinHistory     int     `yaml:"min_history"`
	AbsoluteCutoff float64 `yaml:"absolute_cutoff"`
}

// DefaultFlagConfig returns the standard flag thresholds
func DefaultFlagConfig() FlagConfig {
	return FlagConfig{
		HighMultiplier: 3,
		TrailingWindow: 10,
		MinHistory:     3,
		AbsoluteCutoff: 5000,
	}
}

// FlagInput is everything the flag engine looks at for one receipt
type FlagInput struct {
	ID          string
	Vendor      string
	Amount      decimal.Decimal
	AmountKnown bool
	Category    Category
	Notes       string
	Confidence  float64
	Duplicates  []DuplicateCandidate
	IsRefund    bool
	// History is the owner's receipts, used to judge whether the amount is out of line
	History []*Receipt
}

// FlagEngine derives advisory flags for a receipt
type FlagEngine struct {
	cfg FlagConfig
}

// NewFlagEngine creates a flag engine
func NewFlagEngine(cfg FlagConfig) *FlagEngine {
	return &FlagEngine{cfg: cfg}
}

// BuildFlags returns the sorted set of flags that apply to in
func (e *FlagEngine) BuildFlags(in FlagInput) []Flag {
	set := make(map[Flag]struct{})

	blankVendor := isBlankVendor(in.Vendor)
	missingAmount := !in.AmountKnown || in.Amount.IsZero()

	// A failed extraction leaves a blank form for manual entry; nothing is missing yet
	degraded := in.Confidence == 0 && blankVendor && !in.AmountKnown
	if !degraded {
		if blankVendor {
			set[FlagMissingVendor] = struct{}{}
		}
		if missingAmount {
			set[FlagMissingAmount] = struct{}{}
		}
	}

	if len(in.Duplicates) > 0 {
		set[FlagPossibleDuplicate] = struct{}{}
	}

	if in.IsRefund || (in.AmountKnown && in.Amount.IsNegative()) || IsLikelyRefund(in.Vendor, in.Notes) {
		set[FlagPossibleRefund] = struct{}{}
	}

	if in.AmountKnown && in.Amount.IsPositive() && e.unusuallyHigh(in) {
		set[FlagUnusuallyHigh] = struct{}{}
	}

	flags := make([]Flag, 0, len(set))
	for f := range set {
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
	return flags
}

func (e *FlagEngine) unusuallyHigh(in FlagInput) bool {
	vendor := normalizeVendor(in.Vendor)

	var sameVendor, sameCategory []*Receipt
	for _, r := range in.History {
		if r == nil || r.Void || !r.Amount.IsPositive() {
			continue
		}
		if in.ID != "" && r.ID == in.ID {
			continue
		}
		if !isBlankVendor(in.Vendor) && normalizeVendor(r.Vendor) == vendor {
			sameVendor = append(sameVendor, r)
		}
		if in.Category != "" && r.Category == in.Category {
			sameCategory = append(sameCategory, r)
		}
	}

	for _, history := range [][]*Receipt{sameVendor, sameCategory} {
		if len(history) == 0 || len(history) < e.cfg.MinHistory {
			continue
		}
		avg := trailingAverage(history, e.cfg.TrailingWindow)
		limit := avg.Mul(decimal.NewFromFloat(e.cfg.HighMultiplier))
		return in.Amount.GreaterThan(limit)
	}

	return in.Amount.GreaterThan(decimal.NewFromFloat(e.cfg.AbsoluteCutoff))
}

// trailingAverage averages the amounts of the most recent window receipts
func trailingAverage(history []*Receipt, window int) decimal.Decimal {
	recent := make([]*Receipt, len(history))
	copy(recent, history)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date)
	})
	if window > 0 && len(recent) > window {
		recent = recent[:window]
	}
	if len(recent) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, r := range recent {
		sum = sum.Add(r.Amount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(recent))))
}

// IsLikelyRefund reports whether vendor or notes mention a refund, return or credit
func IsLikelyRefund(vendor, notes string) bool {
	text := normalizeVendor(vendor + " " + notes)
	for _, kw := range refundKeywords {
		if matchesKeyword(text, kw) {
			return true
		}
	}
	return false
}

