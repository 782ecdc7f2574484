package job

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

const (
	jobsBucket    = "jobs"
	workersBucket = "workers"
)

// ErrNotFound is returned when a job or worker does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for job and worker storage
type DB interface {
	SaveJob(j *Job) error
	GetJob(id string) (*Job, error)
	SaveWorker(w *Worker) error
	GetWorker(id string) (*Worker, error)
	ListWorkers(ownerID string) ([]*Worker, error)
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates the jobs and workers buckets in an open bolt database
func NewBoltDB(db *bbolt.DB) (*BoltDB, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{jobsBucket, workersBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating job buckets: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) put(bucket, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
	})
}

func (b *BoltDB) get(bucket, id string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveJob stores a job
func (b *BoltDB) SaveJob(j *Job) error {
	return b.put(jobsBucket, j.ID, j)
}

// GetJob retrieves a job by ID
func (b *BoltDB) GetJob(id string) (*Job, error) {
	var j Job
	if err := b.get(jobsBucket, id, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// SaveWorker stores a worker
func (b *BoltDB) SaveWorker(w *Worker) error {
	return b.put(workersBucket, w.ID, w)
}

// GetWorker retrieves a worker by ID
func (b *BoltDB) GetWorker(id string) (*Worker, error) {
	var w Worker
	if err := b.get(workersBucket, id, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWorkers returns the workers of one owner
func (b *BoltDB) ListWorkers(ownerID string) ([]*Worker, error) {
	workers := make([]*Worker, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(workersBucket)).ForEach(func(k, v []byte) error {
			var w Worker
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("unmarshaling worker: %w", err)
			}
			if w.OwnerID == ownerID {
				workers = append(workers, &w)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return workers, nil
}
