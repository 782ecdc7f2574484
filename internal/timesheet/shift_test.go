package timesheet

import (
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ShiftConfig", func() {
	var (
		cfg   ShiftConfig
		start time.Time
	)

	BeforeEach(func() {
		cfg = DefaultShiftConfig()
		start = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	})

	closed := func(hours float64) *Timesheet {
		out := start.Add(time.Duration(hours * float64(time.Hour)))
		return &Timesheet{ID: "t1", WorkerID: "w1", ClockIn: start, ClockOut: &out}
	}

	It("flags shifts longer than twelve hours", func() {
		Expect(cfg.CheckShift(closed(12.5), start)).To(ConsistOf(FlagUnusuallyLongShift))
		Expect(cfg.CheckShift(closed(12), start)).To(BeEmpty())
	})

	It("flags open shifts older than fourteen hours", func() {
		open := &Timesheet{ID: "t2", WorkerID: "w1", ClockIn: start}
		Expect(cfg.CheckShift(open, start.Add(13*time.Hour))).To(BeEmpty())
		Expect(cfg.CheckShift(open, start.Add(15*time.Hour))).To(ConsistOf(FlagForgotClockOut))
	})

	It("reports alerts with the elapsed hours", func() {
		open := &Timesheet{ID: "t2", WorkerID: "w1", JobID: "j1", ClockIn: start}
		alerts := cfg.Alerts([]*Timesheet{open, closed(8)}, start.Add(15*time.Hour))
		Expect(alerts).To(HaveLen(1))
		Expect(alerts[0].TimesheetID).To(Equal("t2"))
		Expect(alerts[0].Hours.Equal(decimal.NewFromInt(15))).To(BeTrue())
	})
})

var _ = Describe("EffectiveHours", func() {
	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

	It("prefers stored hours", func() {
		out := start.Add(10 * time.Hour)
		stored := decimal.RequireFromString("8")
		Expect(EffectiveHours(&Timesheet{ClockIn: start, ClockOut: &out, Hours: &stored}).String()).To(Equal("8"))
	})

	It("derives hours from the clock times", func() {
		out := start.Add(7*time.Hour + 30*time.Minute)
		Expect(EffectiveHours(&Timesheet{ClockIn: start, ClockOut: &out}).String()).To(Equal("7.5"))
	})

	It("counts open shifts as zero", func() {
		Expect(EffectiveHours(&Timesheet{ClockIn: start}).IsZero()).To(BeTrue())
	})

	It("counts inverted clock times as zero", func() {
		out := start.Add(-time.Hour)
		Expect(EffectiveHours(&Timesheet{ClockIn: start, ClockOut: &out}).IsZero()).To(BeTrue())
	})
})
