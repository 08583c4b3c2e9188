// Package state persists and reloads the one state record kept per
// instance per session. Writes are serialized with an exclusive file lock
// so that concurrent sub-agent processes never corrupt a record; the last
// writer under the lock always wins.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// Status is the coarse lifecycle status of an instance's executor.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Record is one instance's persisted state.
type Record struct {
	InstanceName    string `json:"instance_name"`
	InstanceID      string `json:"instance_id"`
	ClaudeSessionID string `json:"claude_session_id,omitempty"`
	Status          Status `json:"status"`
	UpdatedAt       string `json:"updated_at"`
}

// Load reads the state record at path. A missing file is not an error: it
// returns a zero-value Record with InstanceID left for the caller to fill in.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("reading state record %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parsing state record %s: %w", path, err)
	}
	return rec, nil
}

// Save writes rec to path under an exclusive lock: lock, truncate, write,
// unlock. Concurrent writers from distinct instances never corrupt the
// file; the last writer under the lock wins.
func Save(path string, rec Record) error {
	rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state record %s: %w", path, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing state record %s: %w", path, err)
	}
	return nil
}

// UpdateClaudeSessionID loads the record at path (if any), sets its
// ClaudeSessionID under lock, and saves it back, without a caller-visible
// read-then-write race: the whole sequence runs under one lock acquisition.
func UpdateClaudeSessionID(path, instanceName, instanceID, sessionID string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state record %s: %w", path, err)
	}
	defer lock.Unlock()

	rec, err := loadLocked(path)
	if err != nil {
		return err
	}
	rec.InstanceName = instanceName
	rec.InstanceID = instanceID
	rec.ClaudeSessionID = sessionID
	rec.Status = StatusRunning
	rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state record: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func loadLocked(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("reading state record %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parsing state record %s: %w", path, err)
	}
	return rec, nil
}
