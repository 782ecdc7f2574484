package timesheet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockDB is a mock implementation of DB
type mockDB struct {
	mu         sync.Mutex
	timesheets map[string]*Timesheet
	saveErr    error
	listErr    error
}

func newMockDB() *mockDB {
	return &mockDB{timesheets: make(map[string]*Timesheet)}
}

func (m *mockDB) CreateTimesheet(t *Timesheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, other := range m.timesheets {
		if t.Open() && other.Open() && other.WorkerID == t.WorkerID && other.ID != t.ID {
			return fmt.Errorf("%w: shift %s", ErrAlreadyClockedIn, other.ID)
		}
	}
	stored := *t
	m.timesheets[t.ID] = &stored
	return nil
}

func (m *mockDB) UpdateTimesheet(id string, fn func(t *Timesheet) error) (*Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.timesheets[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := *current
	if err := fn(&updated); err != nil {
		return nil, err
	}
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.timesheets[id] = &updated
	return &updated, nil
}

func (m *mockDB) GetTimesheet(id string) (*Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timesheets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *mockDB) ListTimesheets(filter Filter) ([]*Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Timesheet
	for _, t := range m.timesheets {
		if filter.match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// sequenceIDs hands out ts-1, ts-2, ...
type sequenceIDs struct {
	n int
}

func (s *sequenceIDs) Generate() string {
	s.n++
	return fmt.Sprintf("ts-%d", s.n)
}

type mockTimeSource struct {
	now time.Time
}

func (m *mockTimeSource) Now() time.Time {
	return m.now
}

var _ = Describe("Service", func() {
	var (
		db      *mockDB
		clock   *mockTimeSource
		cfg     GeofenceConfig
		service *Service
		start   time.Time
	)

	BeforeEach(func() {
		db = newMockDB()
		start = time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
		clock = &mockTimeSource{now: start}
		cfg = DefaultGeofenceConfig()
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(db, cfg, DefaultShiftConfig(), &sequenceIDs{}, clock)
	})

	clockIn := func(location Coordinate) (*Timesheet, error) {
		siteCopy := site
		return service.ClockIn(ClockInRequest{
			OwnerID:  "owner-1",
			WorkerID: "worker-1",
			JobID:    "job-1",
			Location: &location,
			Site:     &siteCopy,
		})
	}

	Describe("ClockIn", func() {
		It("opens a working shift on site", func() {
			t, err := clockIn(north(site, 50))
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Status).To(Equal(StatusWorking))
			Expect(t.AIFlags).To(BeEmpty())
			Expect(*t.LocationValid).To(BeTrue())
			Expect(*t.DistanceFromSite).To(BeNumerically("~", 50, 0.01))
			Expect(t.Hours).To(BeNil())
			Expect(db.timesheets).To(HaveKey("ts-1"))
		})

		When("the worker is 200 meters from the site", func() {
			It("flags the mismatch but stays working", func() {
				t, err := clockIn(north(site, 200))
				Expect(err).NotTo(HaveOccurred())
				Expect(t.AIFlags).To(Equal([]Flag{FlagLocationMismatch}))
				Expect(t.Status).To(Equal(StatusWorking))
				Expect(*t.LocationValid).To(BeFalse())
			})

			When("the policy is enforced", func() {
				BeforeEach(func() {
					cfg.Policy = PolicyEnforce
				})

				It("refuses the clock-in", func() {
					_, err := clockIn(north(site, 200))
					Expect(errors.Is(err, ErrOutsideGeofence)).To(BeTrue())
					Expect(db.timesheets).To(BeEmpty())
				})
			})
		})

		It("refuses a second open shift", func() {
			_, err := clockIn(site)
			Expect(err).NotTo(HaveOccurred())
			_, err = clockIn(site)
			Expect(errors.Is(err, ErrAlreadyClockedIn)).To(BeTrue())
			Expect(db.timesheets).To(HaveLen(1))
		})

		When("the job has a site but the device sends no location", func() {
			It("flags the shift and skips the geofence", func() {
				siteCopy := site
				t, err := service.ClockIn(ClockInRequest{OwnerID: "owner-1", WorkerID: "worker-1", JobID: "job-1", Site: &siteCopy})
				Expect(err).NotTo(HaveOccurred())
				Expect(t.AIFlags).To(Equal([]Flag{FlagLocationUnavailable}))
				Expect(t.LocationValid).To(BeNil())
				Expect(t.Status).To(Equal(StatusWorking))

				clock.now = start.Add(8 * time.Hour)
				t, err = service.ClockOut(ClockOutRequest{WorkerID: "worker-1"})
				Expect(err).NotTo(HaveOccurred())
				Expect(t.Status).To(Equal(StatusFlagged))
			})

			When("the policy is enforced", func() {
				BeforeEach(func() {
					cfg.Policy = PolicyEnforce
				})

				It("still allows the clock-in", func() {
					siteCopy := site
					_, err := service.ClockIn(ClockInRequest{OwnerID: "owner-1", WorkerID: "worker-1", JobID: "job-1", Site: &siteCopy})
					Expect(err).NotTo(HaveOccurred())
				})
			})
		})

		It("skips the geofence when no location is known", func() {
			t, err := service.ClockIn(ClockInRequest{OwnerID: "owner-1", WorkerID: "worker-1", JobID: "job-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(t.LocationValid).To(BeNil())
			Expect(t.DistanceFromSite).To(BeNil())
			Expect(t.AIFlags).To(BeEmpty())
		})
	})

	Describe("RecordLocation", func() {
		var ts *Timesheet

		JustBeforeEach(func() {
			var err error
			ts, err = clockIn(site)
			Expect(err).NotTo(HaveOccurred())
		})

		It("flags drift at most once", func() {
			_, err := service.RecordLocation(ts.ID, north(site, 600), start.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			t, err := service.RecordLocation(ts.ID, north(site, 800), start.Add(2*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(t.AIFlags).To(Equal([]Flag{FlagLocationDrift}))
			Expect(t.MaxDriftMeters).To(BeNumerically("~", 800, 0.01))
			Expect(t.Status).To(Equal(StatusWorking))
		})

		It("does not flag movement within the drift radius", func() {
			t, err := service.RecordLocation(ts.ID, north(site, 300), start.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(t.AIFlags).To(BeEmpty())
		})

		It("rejects samples before the clock-in", func() {
			_, err := service.RecordLocation(ts.ID, site, start.Add(-time.Minute))
			Expect(errors.Is(err, ErrOutOfOrder)).To(BeTrue())
		})

		It("rejects samples older than the last one", func() {
			_, err := service.RecordLocation(ts.ID, site, start.Add(2*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			_, err = service.RecordLocation(ts.ID, site, start.Add(time.Hour))
			Expect(errors.Is(err, ErrOutOfOrder)).To(BeTrue())
		})

		It("rejects samples on closed shifts", func() {
			clock.now = start.Add(8 * time.Hour)
			_, err := service.ClockOut(ClockOutRequest{WorkerID: "worker-1"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RecordLocation(ts.ID, north(site, 900), start.Add(9*time.Hour))
			Expect(errors.Is(err, ErrShiftClosed)).To(BeTrue())
			Expect(db.timesheets[ts.ID].HasFlag(FlagLocationDrift)).To(BeFalse())
		})

		It("returns not found for unknown shifts", func() {
			_, err := service.RecordLocation("missing", site, start)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ClockOut", func() {
		It("completes a clean shift", func() {
			_, err := clockIn(site)
			Expect(err).NotTo(HaveOccurred())

			clock.now = start.Add(8*time.Hour + 15*time.Minute)
			t, err := service.ClockOut(ClockOutRequest{WorkerID: "worker-1", Location: &site})
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Status).To(Equal(StatusCompleted))
			Expect(t.Hours.String()).To(Equal("8.25"))
			Expect(*t.ClockOut).To(Equal(clock.now))
		})

		It("marks flagged shifts for review", func() {
			_, err := clockIn(north(site, 200))
			Expect(err).NotTo(HaveOccurred())

			clock.now = start.Add(13 * time.Hour)
			far := north(site, 900)
			t, err := service.ClockOut(ClockOutRequest{WorkerID: "worker-1", Location: &far})
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Status).To(Equal(StatusFlagged))
			Expect(t.AIFlags).To(Equal([]Flag{FlagLocationDrift, FlagLocationMismatch, FlagUnusuallyLongShift}))
		})

		It("refuses when the worker is not clocked in", func() {
			_, err := service.ClockOut(ClockOutRequest{WorkerID: "worker-1"})
			Expect(errors.Is(err, ErrNotClockedIn)).To(BeTrue())
		})

		It("leaves the shift untouched when the store rejects the write", func() {
			ts, err := clockIn(site)
			Expect(err).NotTo(HaveOccurred())

			db.saveErr = ErrPersistence
			clock.now = start.Add(8 * time.Hour)
			_, err = service.ClockOut(ClockOutRequest{WorkerID: "worker-1"})
			Expect(errors.Is(err, ErrPersistence)).To(BeTrue())
			Expect(db.timesheets[ts.ID].Open()).To(BeTrue())
		})
	})

	Describe("Approve", func() {
		var ts *Timesheet

		JustBeforeEach(func() {
			var err error
			ts, err = clockIn(site)
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses open shifts", func() {
			_, err := service.Approve(ts.ID)
			Expect(errors.Is(err, ErrShiftOpen)).To(BeTrue())
		})

		It("locks the timesheet", func() {
			clock.now = start.Add(8 * time.Hour)
			_, err := service.ClockOut(ClockOutRequest{WorkerID: "worker-1"})
			Expect(err).NotTo(HaveOccurred())

			t, err := service.Approve(ts.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Status).To(Equal(StatusApproved))

			_, err = service.Reject(ts.ID)
			Expect(errors.Is(err, ErrImmutable)).To(BeTrue())
			_, err = service.RecordLocation(ts.ID, site, clock.now)
			Expect(errors.Is(err, ErrImmutable)).To(BeTrue())
		})
	})

	Describe("List", func() {
		It("filters by job and sorts newest first", func() {
			older := &Timesheet{ID: "a", JobID: "job-1", WorkerID: "w1", ClockIn: start}
			newer := &Timesheet{ID: "b", JobID: "job-1", WorkerID: "w2", ClockIn: start.Add(time.Hour)}
			other := &Timesheet{ID: "c", JobID: "job-2", WorkerID: "w1", ClockIn: start}
			db.timesheets = map[string]*Timesheet{"a": older, "b": newer, "c": other}

			list, err := service.List(Filter{JobID: "job-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(Equal([]*Timesheet{newer, older}))
		})
	})
})
