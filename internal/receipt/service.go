package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/siteledger/internal/scanning"
)

// ErrInvalid is returned when a receipt cannot be stored as submitted
var ErrInvalid = errors.New("invalid receipt")

// IDGenerator generates unique IDs for receipts
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
	return time.Now()
}

// Rules holds the tunables for categorization, duplicate detection and flagging
type Rules struct {
	Keywords   []KeywordRule    `yaml:"keywords"`
	Amounts    AmountHeuristics `yaml:"amounts"`
	Duplicates DuplicateConfig  `yaml:"duplicates"`
	Flags      FlagConfig       `yaml:"flags"`
}

// DefaultRules returns the built-in rules
func DefaultRules() Rules {
	return Rules{
		Keywords:   DefaultKeywordRules(),
		Amounts:    DefaultAmountHeuristics(),
		Duplicates: DefaultDuplicateConfig(),
		Flags:      DefaultFlagConfig(),
	}
}

// Service handles receipt operations
type Service struct {
	db          DB
	extractor   scanning.Extractor
	storage     Storage
	categorizer *Categorizer
	duplicates  *DuplicateDetector
	flags       *FlagEngine
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID ids and the system clock
func NewService(db DB, extractor scanning.Extractor, storage Storage, rules Rules) *Service {
	return NewServiceWithDeps(db, extractor, storage, rules, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor scanning.Extractor, storage Storage, rules Rules, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		categorizer: NewCategorizer(rules.Keywords, rules.Amounts),
		duplicates:  NewDuplicateDetector(rules.Duplicates),
		flags:       NewFlagEngine(rules.Flags),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Scan stores an uploaded image, extracts its fields and returns an annotated draft.
// Nothing is persisted to the database. When extraction fails the draft is blank with zero
// confidence so the receipt can still be entered by hand.
func (s *Service) Scan(ctx context.Context, ownerID, submittedBy, jobID, filename string, data []byte, contentType string) (*Receipt, error) {
	id := s.idGenerator.Generate()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	draft := Draft{
		ID:          id,
		JobID:       jobID,
		ImageURL:    savedName,
		ContentType: contentType,
	}

	extracted, err := s.extractor.ExtractReceipt(ctx, data, contentType)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.removeFile(savedName)
		return nil, fmt.Errorf("scanning receipt: %w", ctxErr)
	}
	if err != nil {
		slog.Warn("Receipt extraction failed, falling back to manual entry",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
	} else {
		s.applyExtraction(&draft, extracted)
	}

	return s.Annotate(ownerID, submittedBy, draft)
}

func (s *Service) applyExtraction(draft *Draft, data *scanning.ReceiptData) {
	draft.AIProcessed = true
	draft.Confidence = data.Confidence
	draft.Category = data.Category
	if data.Vendor != scanning.UnknownVendor {
		draft.Vendor = data.Vendor
	}
	if data.Amount != nil && !math.IsNaN(*data.Amount) && !math.IsInf(*data.Amount, 0) {
		draft.Amount = decimal.NewFromFloat(*data.Amount).Round(2)
		draft.AmountKnown = true
	}
	if d, err := time.Parse("2006-01-02", data.Date); err == nil {
		draft.Date = d
	}
}

// Annotate categorizes a draft, checks it against the owner's receipts and attaches flags.
// The result is not persisted.
func (s *Service) Annotate(ownerID, submittedBy string, draft Draft) (*Receipt, error) {
	history, err := s.db.ListReceipts(ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts for %s: %w", ownerID, err)
	}
	return s.annotate(ownerID, submittedBy, draft, history), nil
}

func (s *Service) annotate(ownerID, submittedBy string, draft Draft, history []*Receipt) *Receipt {
	now := s.timeSource.Now()

	id := draft.ID
	if id == "" {
		id = s.idGenerator.Generate()
	}
	date := draft.Date
	if date.IsZero() {
		date = now
	}

	suggested, categoryConfidence := s.categorizer.Categorize(draft.Vendor, draft.Amount)
	category := suggested
	if draft.Category != "" {
		if c, ok := ParseCategory(draft.Category); ok {
			category = c
		}
	}

	r := &Receipt{
		ID:                  id,
		OwnerID:             ownerID,
		SubmittedBy:         submittedBy,
		JobID:               draft.JobID,
		Amount:              draft.Amount,
		Vendor:              draft.Vendor,
		Category:            category,
		Date:                date,
		ImageURL:            draft.ImageURL,
		ContentType:         draft.ContentType,
		Notes:               draft.Notes,
		AIProcessed:         draft.AIProcessed,
		AIConfidence:        clampConfidence(draft.Confidence),
		AISuggestedCategory: suggested,
		CategoryConfidence:  categoryConfidence,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	duplicates := s.duplicates.Detect(r, history)
	r.AIFlags = s.flags.BuildFlags(FlagInput{
		ID:          r.ID,
		Vendor:      r.Vendor,
		Amount:      r.Amount,
		AmountKnown: draft.AmountKnown,
		Category:    r.Category,
		Notes:       r.Notes,
		Confidence:  r.AIConfidence,
		Duplicates:  duplicates,
		History:     history,
	})
	return r
}

// Create runs the annotation pipeline over a reviewed draft and persists the result
func (s *Service) Create(ctx context.Context, ownerID, submittedBy string, draft Draft) (*Receipt, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalid)
	}
	if draft.AmountKnown && draft.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalid)
	}
	if draft.Category != "" {
		if _, ok := ParseCategory(draft.Category); !ok {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalid, draft.Category)
		}
	}

	var existing *Receipt
	if draft.ID != "" {
		found, err := s.db.GetReceipt(draft.ID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("getting receipt %s: %w", draft.ID, err)
		case found.OwnerID != ownerID:
			return nil, fmt.Errorf("%w: receipt %s belongs to another owner", ErrInvalid, draft.ID)
		default:
			existing = found
		}
	}

	receipt, err := s.Annotate(ownerID, submittedBy, draft)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		receipt.CreatedAt = existing.CreatedAt
		receipt.Void = existing.Void
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("creating receipt: %w", err)
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return receipt, nil
}

// Get retrieves a receipt by ID
func (s *Service) Get(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// List returns an owner's receipts, optionally limited to one job, newest first
func (s *Service) List(ownerID, jobID string) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts(ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	filtered := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		if jobID != "" && r.JobID != jobID {
			continue
		}
		filtered = append(filtered, r)
	}
	sortNewestFirst(filtered)
	return filtered, nil
}

// DuplicatesOf returns the stored receipts that look like duplicates of receipt id
func (s *Service) DuplicatesOf(id string) ([]DuplicateCandidate, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	history, err := s.db.ListReceipts(receipt.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return s.duplicates.Detect(receipt, history), nil
}

// Void marks a receipt void so it no longer counts toward expenses or duplicate checks
func (s *Service) Void(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.Void {
		return receipt, nil
	}
	receipt.Void = true
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("voiding receipt: %w", err)
	}
	return receipt, nil
}

// Delete removes a receipt and its file
func (s *Service) Delete(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if receipt.ImageURL != "" {
		s.removeFile(receipt.ImageURL)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the image for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.ImageURL == "" {
		return nil, "", fmt.Errorf("%w: receipt %s has no file", ErrNotFound, id)
	}

	data, err := s.storage.Get(receipt.ImageURL)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// ExpensesForJob totals the owner's non-void receipts recorded against a job
func (s *Service) ExpensesForJob(ownerID, jobID string) (decimal.Decimal, error) {
	receipts, err := s.db.ListReceipts(ownerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listing receipts: %w", err)
	}
	return TotalExpenses(receipts, jobID), nil
}

// TotalExpenses sums the non-void receipts recorded against jobID
func TotalExpenses(receipts []*Receipt, jobID string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range receipts {
		if r == nil || r.Void || r.JobID != jobID {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total
}

func (s *Service) removeFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
