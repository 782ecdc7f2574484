package job

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Roster is a set of jobs and workers loaded from a YAML file
type Roster struct {
	Jobs    []*Job    `yaml:"jobs"`
	Workers []*Worker `yaml:"workers"`
}

// LoadRoster reads a roster file
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	for _, j := range r.Jobs {
		if j.ID == "" || j.OwnerID == "" {
			return nil, fmt.Errorf("job %q: id and owner_id are required", j.Name)
		}
		if j.Status == "" {
			j.Status = StatusActive
		}
	}
	for _, w := range r.Workers {
		if w.ID == "" || w.OwnerID == "" {
			return nil, fmt.Errorf("worker %q: id and owner_id are required", w.Name)
		}
	}
	return &r, nil
}

// Import stores every job and worker of the roster
func Import(db DB, r *Roster) error {
	for _, j := range r.Jobs {
		if err := db.SaveJob(j); err != nil {
			return fmt.Errorf("saving job %s: %w", j.ID, err)
		}
	}
	for _, w := range r.Workers {
		if err := db.SaveWorker(w); err != nil {
			return fmt.Errorf("saving worker %s: %w", w.ID, err)
		}
	}
	return nil
}
