package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zombor/siteledger/internal/receipt"
	"github.com/zombor/siteledger/internal/timesheet"
)

// defaultKeywordConfidence applies to keyword rules that leave confidence out
const defaultKeywordConfidence = 0.9

// Rules is the tunable behavior of the engine, loaded once at startup
type Rules struct {
	Receipts receipt.Rules            `yaml:"receipts"`
	Geofence timesheet.GeofenceConfig `yaml:"geofence"`
	Shifts   timesheet.ShiftConfig    `yaml:"shifts"`
}

// DefaultRules returns the built-in rules
func DefaultRules() Rules {
	return Rules{
		Receipts: receipt.DefaultRules(),
		Geofence: timesheet.DefaultGeofenceConfig(),
		Shifts:   timesheet.DefaultShiftConfig(),
	}
}

// LoadRules overlays a YAML rules file on the defaults. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parsing rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("validating rules %s: %w", path, err)
	}
	return rules, nil
}

// Validate fills keyword confidence defaults and checks every threshold
func (r *Rules) Validate() error {
	for i := range r.Receipts.Keywords {
		rule := &r.Receipts.Keywords[i]
		if rule.Confidence == 0 {
			rule.Confidence = defaultKeywordConfidence
		}
		if !rule.Category.Valid() {
			return fmt.Errorf("keyword rule %d: unknown category %q", i, rule.Category)
		}
		if rule.Confidence < 0 || rule.Confidence > 1 {
			return fmt.Errorf("keyword rule %d: confidence %v out of range", i, rule.Confidence)
		}
	}

	d := r.Receipts.Duplicates
	if d.AmountTolerance < 0 || d.DateWindowDays < 0 {
		return errors.New("duplicate tolerances must not be negative")
	}
	if d.VendorWeight < 0 || d.AmountWeight < 0 || d.VendorWeight+d.AmountWeight > 1.0000001 {
		return errors.New("duplicate weights must be non-negative and sum to at most 1")
	}
	if d.MinSimilarity < 0 || d.MinSimilarity > 1 || d.VendorMatchThreshold < 0 || d.VendorMatchThreshold > 1 {
		return errors.New("duplicate similarity thresholds must be within [0,1]")
	}

	f := r.Receipts.Flags
	if f.HighMultiplier <= 0 || f.TrailingWindow <= 0 || f.MinHistory < 1 || f.AbsoluteCutoff <= 0 {
		return errors.New("flag thresholds must be positive")
	}

	if err := r.Geofence.Validate(); err != nil {
		return err
	}
	if r.Shifts.LongShiftHours < 0 || r.Shifts.ForgotClockOutHours < 0 {
		return errors.New("shift thresholds must not be negative")
	}
	return nil
}

// LoadDotEnv loads environment variables from the given files when they exist.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}
