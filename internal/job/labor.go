package job

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/siteledger/internal/timesheet"
)

// Summary is the financial position of one job
type Summary struct {
	JobID            string          `json:"job_id"`
	ProjectValue     decimal.Decimal `json:"project_value"`
	LaborHours       decimal.Decimal `json:"labor_hours"`
	LaborCost        decimal.Decimal `json:"labor_cost"`
	ReceiptExpenses  decimal.Decimal `json:"receipt_expenses"`
	Profit           decimal.Decimal `json:"profit"`
	Margin           decimal.Decimal `json:"margin"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// rates maps worker id to a usable hourly rate
func rates(workers []*Worker) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(workers))
	for _, w := range workers {
		if w == nil || w.ID == "" || w.HourlyRate == nil || w.HourlyRate.IsNegative() {
			continue
		}
		out[w.ID] = *w.HourlyRate
	}
	return out
}

type window struct {
	from, to time.Time
}

func (w *window) contains(t time.Time) bool {
	if w == nil {
		return true
	}
	return !t.Before(w.from) && t.Before(w.to)
}

func labor(j *Job, timesheets []*timesheet.Timesheet, workers []*Worker, w *window) (hours, cost decimal.Decimal) {
	hours, cost = decimal.Zero, decimal.Zero
	rate := rates(workers)
	for _, t := range timesheets {
		if t == nil || t.JobID != j.ID || !w.contains(t.ClockIn) {
			continue
		}
		r, ok := rate[t.WorkerID]
		if !ok {
			continue
		}
		h := timesheet.EffectiveHours(t)
		if !h.IsPositive() {
			continue
		}
		hours = hours.Add(h)
		cost = cost.Add(h.Mul(r))
	}
	return hours, cost
}

// LaborCost sums hours times rate over the job's timesheets. Timesheets for other jobs,
// workers without a rate and shifts with no hours are skipped.
func LaborCost(j *Job, timesheets []*timesheet.Timesheet, workers []*Worker) decimal.Decimal {
	_, cost := labor(j, timesheets, workers, nil)
	return cost
}

// LaborCostBetween is LaborCost limited to shifts clocked in during [from, to)
func LaborCostBetween(j *Job, timesheets []*timesheet.Timesheet, workers []*Worker, from, to time.Time) decimal.Decimal {
	_, cost := labor(j, timesheets, workers, &window{from: from, to: to})
	return cost
}

// Profit is project value less labor and receipt expenses. It may be negative.
func Profit(j *Job, laborCost, receiptExpenses decimal.Decimal) decimal.Decimal {
	return j.ProjectValue.Sub(laborCost).Sub(receiptExpenses)
}

// Margin is profit over project value, or zero when the job has no value
func Margin(j *Job, profit decimal.Decimal) decimal.Decimal {
	if !j.ProjectValue.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(j.ProjectValue)
}

// Summarize computes the full financial summary for a job
func Summarize(j *Job, timesheets []*timesheet.Timesheet, workers []*Worker, receiptExpenses decimal.Decimal) Summary {
	hours, cost := labor(j, timesheets, workers, nil)
	profit := Profit(j, cost, receiptExpenses)
	return Summary{
		JobID:            j.ID,
		ProjectValue:     j.ProjectValue,
		LaborHours:       hours,
		LaborCost:        cost,
		ReceiptExpenses:  receiptExpenses,
		Profit:           profit,
		Margin:           Margin(j, profit),
		AmountPaid:       j.AmountPaid,
		RemainingBalance: j.RemainingBalance(),
	}
}
