package ledger

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/siteledger/internal/job"
	"github.com/zombor/siteledger/internal/receipt"
	"github.com/zombor/siteledger/internal/timesheet"
)

// Stores are the bolt-backed stores sharing one database file
type Stores struct {
	DB         *bbolt.DB
	Receipts   *receipt.BoltDB
	Timesheets *timesheet.BoltDB
	Jobs       *job.BoltDB
}

// OpenStores opens the database file and creates every bucket
func OpenStores(path string) (*Stores, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	s := &Stores{DB: db}
	if s.Receipts, err = receipt.NewBoltDB(db); err != nil {
		db.Close()
		return nil, err
	}
	if s.Timesheets, err = timesheet.NewBoltDB(db); err != nil {
		db.Close()
		return nil, err
	}
	if s.Jobs, err = job.NewBoltDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database file
func (s *Stores) Close() error {
	return s.DB.Close()
}
