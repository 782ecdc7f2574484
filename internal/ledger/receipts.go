package ledger

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/zombor/siteledger/internal/receipt"
)

// receiptRequest is the JSON body for annotating or creating a receipt
type receiptRequest struct {
	ID          string           `json:"id" validate:"omitempty,max=100"`
	JobID       string           `json:"job_id" validate:"omitempty,max=100"`
	Vendor      string           `json:"vendor" validate:"max=200"`
	Amount      *decimal.Decimal `json:"amount"`
	Date        string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Category    string           `json:"category" validate:"max=50"`
	Notes       string           `json:"notes" validate:"max=2000"`
	ImageURL    string           `json:"image_url" validate:"max=200"`
	ContentType string           `json:"content_type" validate:"max=100"`
	AIProcessed bool             `json:"ai_processed"`
	Confidence  float64          `json:"confidence" validate:"gte=0,lte=1"`
}

func (req receiptRequest) draft() receipt.Draft {
	d := receipt.Draft{
		ID:          req.ID,
		JobID:       req.JobID,
		Vendor:      strings.TrimSpace(req.Vendor),
		Category:    req.Category,
		Notes:       req.Notes,
		ImageURL:    req.ImageURL,
		ContentType: req.ContentType,
		AIProcessed: req.AIProcessed,
		Confidence:  req.Confidence,
	}
	if req.Amount != nil {
		d.Amount = *req.Amount
		d.AmountKnown = true
	}
	if req.Date != "" {
		// validated above
		d.Date, _ = time.Parse("2006-01-02", req.Date)
	}
	return d
}

// handleScanReceipt extracts an uploaded receipt into a draft for review
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSONError(w, http.StatusBadRequest, message)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)
	draft, err := s.engine.ScanReceipt(r.Context(), actingUser(r), r.FormValue("job_id"), header.Filename, data, contentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// detectContentType falls back to the file extension when the upload has no usable type
func detectContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleAnnotateReceipt runs categorization, duplicate detection and flagging on raw fields
func (s *Server) handleAnnotateReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	annotated, err := s.engine.AnnotateReceipt(actingUser(r), req.draft())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, annotated)
}

// handleCreateReceipt persists a reviewed receipt
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	created, err := s.engine.CreateReceipt(r.Context(), actingUser(r), req.draft())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListReceipts lists the acting user's receipts, or a job's receipts when job_id is set
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	receipts, err := s.engine.Receipts(actingUser(r), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	found, err := s.engine.Receipt(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleGetReceiptFile returns the image for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.engine.ReceiptFile(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// handleReceiptDuplicates lists likely duplicates of a stored receipt
func (s *Server) handleReceiptDuplicates(w http.ResponseWriter, r *http.Request) {
	dups, err := s.engine.DuplicatesOf(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if dups == nil {
		dups = []receipt.DuplicateCandidate{}
	}
	writeJSON(w, http.StatusOK, dups)
}

// handleVoidReceipt voids a receipt
func (s *Server) handleVoidReceipt(w http.ResponseWriter, r *http.Request) {
	voided, err := s.engine.VoidReceipt(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voided)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteReceipt(actingUser(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
