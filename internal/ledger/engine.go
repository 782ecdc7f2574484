package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zombor/siteledger/internal/job"
	"github.com/zombor/siteledger/internal/receipt"
	"github.com/zombor/siteledger/internal/timesheet"
)

// ErrForbidden is returned when the acting user may not review a record
var ErrForbidden = errors.New("not permitted")

// JobAlerts groups everything an owner should look at for one job
type JobAlerts struct {
	Budget  []job.Alert            `json:"budget"`
	Payment []job.Alert            `json:"payment"`
	Shifts  []timesheet.ShiftAlert `json:"shifts"`
}

// Engine ties receipts, timesheets and jobs together
type Engine struct {
	receipts   *receipt.Service
	timesheets *timesheet.Service
	jobs       job.DB
}

// NewEngine creates an Engine
func NewEngine(receipts *receipt.Service, timesheets *timesheet.Service, jobs job.DB) *Engine {
	return &Engine{
		receipts:   receipts,
		timesheets: timesheets,
		jobs:       jobs,
	}
}

// ownerFor resolves who owns a receipt: the job's owner when a job is given, else the submitter.
// Only the owner and the owner's workers may file against a job.
func (e *Engine) ownerFor(submitter, jobID string) (string, error) {
	if jobID == "" {
		return submitter, nil
	}
	j, err := e.jobs.GetJob(jobID)
	if err != nil {
		return "", fmt.Errorf("getting job: %w", err)
	}
	if submitter == j.OwnerID {
		return j.OwnerID, nil
	}
	w, err := e.jobs.GetWorker(submitter)
	if errors.Is(err, job.ErrNotFound) || (err == nil && w.OwnerID != j.OwnerID) {
		return "", fmt.Errorf("%w: %s does not work on job %s", ErrForbidden, submitter, jobID)
	}
	if err != nil {
		return "", fmt.Errorf("getting worker: %w", err)
	}
	return j.OwnerID, nil
}

// receiptFor loads a receipt the actor owns or submitted
func (e *Engine) receiptFor(actor, id string) (*receipt.Receipt, error) {
	r, err := e.receipts.Get(id)
	if err != nil {
		return nil, err
	}
	if actor != r.OwnerID && actor != r.SubmittedBy {
		return nil, fmt.Errorf("%w: receipt %s", ErrForbidden, id)
	}
	return r, nil
}

// jobFor loads a job only its owner may see
func (e *Engine) jobFor(actor, jobID string) (*job.Job, error) {
	j, err := e.jobs.GetJob(jobID)
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	if j.OwnerID != actor {
		return nil, fmt.Errorf("%w: job %s", ErrForbidden, jobID)
	}
	return j, nil
}

// ScanReceipt extracts and annotates an uploaded receipt image without persisting it
func (e *Engine) ScanReceipt(ctx context.Context, submitter, jobID, filename string, data []byte, contentType string) (*receipt.Receipt, error) {
	owner, err := e.ownerFor(submitter, jobID)
	if err != nil {
		return nil, err
	}
	return e.receipts.Scan(ctx, owner, submitter, jobID, filename, data, contentType)
}

// AnnotateReceipt categorizes, de-duplicates and flags raw receipt fields
func (e *Engine) AnnotateReceipt(submitter string, draft receipt.Draft) (*receipt.Receipt, error) {
	owner, err := e.ownerFor(submitter, draft.JobID)
	if err != nil {
		return nil, err
	}
	return e.receipts.Annotate(owner, submitter, draft)
}

// CreateReceipt annotates and persists a reviewed receipt
func (e *Engine) CreateReceipt(ctx context.Context, submitter string, draft receipt.Draft) (*receipt.Receipt, error) {
	owner, err := e.ownerFor(submitter, draft.JobID)
	if err != nil {
		return nil, err
	}
	return e.receipts.Create(ctx, owner, submitter, draft)
}

// Receipt returns a stored receipt
func (e *Engine) Receipt(actor, id string) (*receipt.Receipt, error) {
	return e.receiptFor(actor, id)
}

// Receipts lists the actor's receipts, or the receipts of a job under the job's owner.
// Workers only see the job receipts they submitted.
func (e *Engine) Receipts(actor, jobID string) ([]*receipt.Receipt, error) {
	owner, err := e.ownerFor(actor, jobID)
	if err != nil {
		return nil, err
	}
	receipts, err := e.receipts.List(owner, jobID)
	if err != nil || actor == owner {
		return receipts, err
	}
	mine := make([]*receipt.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r.SubmittedBy == actor {
			mine = append(mine, r)
		}
	}
	return mine, nil
}

// ReceiptFile returns the stored image of a receipt
func (e *Engine) ReceiptFile(actor, id string) ([]byte, string, error) {
	if _, err := e.receiptFor(actor, id); err != nil {
		return nil, "", err
	}
	return e.receipts.GetReceiptFile(id)
}

// DuplicatesOf lists likely duplicates of a stored receipt
func (e *Engine) DuplicatesOf(actor, id string) ([]receipt.DuplicateCandidate, error) {
	if _, err := e.receiptFor(actor, id); err != nil {
		return nil, err
	}
	return e.receipts.DuplicatesOf(id)
}

// VoidReceipt excludes a receipt from expenses and duplicate checks
func (e *Engine) VoidReceipt(actor, id string) (*receipt.Receipt, error) {
	if _, err := e.receiptFor(actor, id); err != nil {
		return nil, err
	}
	return e.receipts.Void(id)
}

// DeleteReceipt removes a receipt and its image
func (e *Engine) DeleteReceipt(actor, id string) error {
	if _, err := e.receiptFor(actor, id); err != nil {
		return err
	}
	return e.receipts.Delete(id)
}

// JobFinancialSummary computes labor cost, receipt expenses, profit and margin for a job
func (e *Engine) JobFinancialSummary(actor, jobID string) (*job.Job, job.Summary, error) {
	j, err := e.jobFor(actor, jobID)
	if err != nil {
		return nil, job.Summary{}, err
	}

	timesheets, err := e.timesheets.List(timesheet.Filter{JobID: jobID})
	if err != nil {
		return nil, job.Summary{}, err
	}
	workers, err := e.jobs.ListWorkers(j.OwnerID)
	if err != nil {
		return nil, job.Summary{}, fmt.Errorf("listing workers: %w", err)
	}
	expenses, err := e.receipts.ExpensesForJob(j.OwnerID, jobID)
	if err != nil {
		return nil, job.Summary{}, err
	}

	return j, job.Summarize(j, timesheets, workers, expenses), nil
}

// JobAlerts collects budget, payment and shift alerts for a job
func (e *Engine) JobAlerts(actor, jobID string) (JobAlerts, error) {
	j, summary, err := e.JobFinancialSummary(actor, jobID)
	if err != nil {
		return JobAlerts{}, err
	}
	shifts, err := e.timesheets.Alerts(timesheet.Filter{JobID: jobID})
	if err != nil {
		return JobAlerts{}, err
	}
	return JobAlerts{
		Budget:  job.BudgetAlerts(j, summary),
		Payment: job.PaymentAlerts(j),
		Shifts:  shifts,
	}, nil
}

// ClockIn opens a shift for a worker on a job, checking the position against the job site
func (e *Engine) ClockIn(workerID, jobID string, location *timesheet.Coordinate, notes string) (*timesheet.Timesheet, error) {
	j, err := e.jobs.GetJob(jobID)
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	w, err := e.jobs.GetWorker(workerID)
	if err != nil {
		return nil, fmt.Errorf("getting worker: %w", err)
	}
	if w.OwnerID != j.OwnerID {
		return nil, fmt.Errorf("%w: worker %s does not work for the job's owner", ErrForbidden, workerID)
	}

	return e.timesheets.ClockIn(timesheet.ClockInRequest{
		OwnerID:  j.OwnerID,
		WorkerID: workerID,
		JobID:    jobID,
		Location: location,
		Site:     j.Site,
		Notes:    notes,
	})
}

// ClockOut closes the worker's open shift
func (e *Engine) ClockOut(workerID string, location *timesheet.Coordinate, notes string) (*timesheet.Timesheet, error) {
	return e.timesheets.ClockOut(timesheet.ClockOutRequest{
		WorkerID: workerID,
		Location: location,
		Notes:    notes,
	})
}

// RecordLocation checks a mid-shift position sample. Only the shift's worker may report one.
func (e *Engine) RecordLocation(actor, timesheetID string, location timesheet.Coordinate, at time.Time) (*timesheet.Timesheet, error) {
	t, err := e.timesheets.Get(timesheetID)
	if err != nil {
		return nil, err
	}
	if t.WorkerID != actor {
		return nil, fmt.Errorf("%w: timesheet %s belongs to another worker", ErrForbidden, timesheetID)
	}
	return e.timesheets.RecordLocation(timesheetID, location, at)
}

// ApproveTimesheet locks a timesheet. Only the owner may approve.
func (e *Engine) ApproveTimesheet(actor, id string) (*timesheet.Timesheet, error) {
	if err := e.checkReviewer(actor, id); err != nil {
		return nil, err
	}
	return e.timesheets.Approve(id)
}

// RejectTimesheet rejects a timesheet. Only the owner may reject.
func (e *Engine) RejectTimesheet(actor, id string) (*timesheet.Timesheet, error) {
	if err := e.checkReviewer(actor, id); err != nil {
		return nil, err
	}
	return e.timesheets.Reject(id)
}

func (e *Engine) checkReviewer(actor, id string) error {
	t, err := e.timesheets.Get(id)
	if err != nil {
		return err
	}
	if t.OwnerID != actor {
		return fmt.Errorf("%w: only the owner can review timesheet %s", ErrForbidden, id)
	}
	return nil
}

// Timesheet returns one timesheet to its owner or worker
func (e *Engine) Timesheet(actor, id string) (*timesheet.Timesheet, error) {
	t, err := e.timesheets.Get(id)
	if err != nil {
		return nil, err
	}
	if actor != t.OwnerID && actor != t.WorkerID {
		return nil, fmt.Errorf("%w: timesheet %s", ErrForbidden, id)
	}
	return t, nil
}

// Timesheets lists the timesheets matching the filter that the actor owns or worked
func (e *Engine) Timesheets(actor string, filter timesheet.Filter) ([]*timesheet.Timesheet, error) {
	if filter.JobID == "" && filter.WorkerID == "" && filter.OwnerID == "" {
		filter.OwnerID = actor
	}
	all, err := e.timesheets.List(filter)
	if err != nil {
		return nil, err
	}
	visible := make([]*timesheet.Timesheet, 0, len(all))
	for _, t := range all {
		if t.OwnerID == actor || t.WorkerID == actor {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// ShiftAlerts lists shift length alerts for a job
func (e *Engine) ShiftAlerts(actor, jobID string) ([]timesheet.ShiftAlert, error) {
	if _, err := e.jobFor(actor, jobID); err != nil {
		return nil, err
	}
	return e.timesheets.Alerts(timesheet.Filter{JobID: jobID})
}
