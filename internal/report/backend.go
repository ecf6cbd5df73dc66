package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned when another pass holds the run lock.
	ErrLocked = errors.New("another reconciliation pass is running")
	// ErrNoReport is returned by Latest before any report was written.
	ErrNoReport = errors.New("no report has been written")
)

// latestName is the object every backend keeps a copy of the newest report under.
const latestName = "latest.json"

// Backend defines the interface for report storage backends.
type Backend interface {
	// Write stores the report and makes it the latest one.
	Write(ctx context.Context, r *Report) error

	// Latest loads the most recently written report.
	Latest(ctx context.Context) (*Report, error)

	// Lock acquires the run lock. It fails with ErrLocked while held elsewhere.
	Lock(ctx context.Context) error

	// Unlock releases the run lock.
	Unlock(ctx context.Context) error
}

// BackendConfig holds configuration for a report backend.
type BackendConfig struct {
	Type string `json:"type"` // "local", "s3"

	// Dir is where the local backend keeps reports.
	Dir string `json:"dir"`

	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Region    string `json:"region"`
	LockTable string `json:"lock_table"` // DynamoDB table for locking
	Profile   string `json:"profile"`
}

// NewBackend creates a report backend from configuration.
func NewBackend(ctx context.Context, cfg *BackendConfig) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("local report backend requires a directory")
		}
		return NewManager(cfg.Dir), nil
	case "s3":
		return newS3Backend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

func encode(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

func decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}
