package timesheet

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

const bucketName = "timesheets"

var (
	// ErrNotFound is returned when a timesheet does not exist
	ErrNotFound = errors.New("timesheet not found")

	// ErrPersistence marks a storage failure; the operation can be retried
	ErrPersistence = errors.New("timesheet store unavailable")
)

// Filter narrows a timesheet listing; empty fields match everything
type Filter struct {
	OwnerID  string
	JobID    string
	WorkerID string
	OpenOnly bool
}

func (f Filter) match(t *Timesheet) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if f.JobID != "" && t.JobID != f.JobID {
		return false
	}
	if f.WorkerID != "" && t.WorkerID != f.WorkerID {
		return false
	}
	if f.OpenOnly && !t.Open() {
		return false
	}
	return true
}

// DB defines the interface for timesheet storage
type DB interface {
	// CreateTimesheet stores a new timesheet. It fails with ErrAlreadyClockedIn when the
	// timesheet is open and its worker already holds an open shift.
	CreateTimesheet(t *Timesheet) error
	// UpdateTimesheet applies fn to the stored timesheet and saves the result atomically.
	// Nothing is saved when fn returns an error; that error is returned as is.
	UpdateTimesheet(id string, fn func(t *Timesheet) error) (*Timesheet, error)
	GetTimesheet(id string) (*Timesheet, error)
	ListTimesheets(filter Filter) ([]*Timesheet, error)
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates the timesheets bucket in an open bolt database
func NewBoltDB(db *bbolt.DB) (*BoltDB, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating timesheets bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// CreateTimesheet stores a new timesheet, checking for an open shift in the same transaction
func (b *BoltDB) CreateTimesheet(t *Timesheet) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling timesheet: %w", err)
	}

	var conflict error
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if t.Open() {
			err := bucket.ForEach(func(k, v []byte) error {
				var other Timesheet
				if err := json.Unmarshal(v, &other); err != nil {
					return fmt.Errorf("unmarshaling timesheet: %w", err)
				}
				if other.ID != t.ID && other.WorkerID == t.WorkerID && other.Open() {
					conflict = fmt.Errorf("%w: shift %s", ErrAlreadyClockedIn, other.ID)
					return conflict
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return bucket.Put([]byte(t.ID), data)
	})
	if conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("saving timesheet %s: %w: %w", t.ID, ErrPersistence, err)
	}
	return nil
}

// UpdateTimesheet reads, changes and writes a timesheet in one transaction
func (b *BoltDB) UpdateTimesheet(id string, fn func(t *Timesheet) error) (*Timesheet, error) {
	var (
		t        *Timesheet
		rejected error
	)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			rejected = fmt.Errorf("%w: %s", ErrNotFound, id)
			return rejected
		}
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("unmarshaling timesheet: %w", err)
		}
		if err := fn(t); err != nil {
			rejected = err
			return err
		}
		updated, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling timesheet: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, fmt.Errorf("updating timesheet %s: %w: %w", id, ErrPersistence, err)
	}
	return t, nil
}

// GetTimesheet retrieves a timesheet by ID
func (b *BoltDB) GetTimesheet(id string) (*Timesheet, error) {
	var t *Timesheet
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTimesheets returns the timesheets matching filter
func (b *BoltDB) ListTimesheets(filter Filter) ([]*Timesheet, error) {
	timesheets := make([]*Timesheet, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var t Timesheet
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshaling timesheet: %w", err)
			}
			if filter.match(&t) {
				timesheets = append(timesheets, &t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return timesheets, nil
}
