package domain

import (
	"encoding/json"
	"time"
)

// ErrorEntry is a rendered ValidationError as it is kept in a run report.
type ErrorEntry struct {
	Path    string
	Key     string
	Params  []string
	Message string
	Value   json.RawMessage
}

type FileResult struct {
	Namespace   string
	ContentType string
	Path        string
	Errors      []ErrorEntry
}

func (f FileResult) Failed() bool { return len(f.Errors) > 0 }

// RunReport is the outcome of validating one pack root.
type RunReport struct {
	ID          string
	Root        string
	Namespaces  []string
	Files       []FileResult
	FoundErrors bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (r RunReport) Summary() RunSummary {
	s := RunSummary{
		ID:          r.ID,
		Root:        r.Root,
		FoundErrors: r.FoundErrors,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		FileCount:   len(r.Files),
	}
	for _, f := range r.Files {
		if f.Failed() {
			s.FailedFiles++
		}
		s.ErrorCount += len(f.Errors)
	}
	return s
}

type RunSummary struct {
	ID          string
	Root        string
	FileCount   int
	FailedFiles int
	ErrorCount  int
	FoundErrors bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

const EventRunCompleted = "run.completed"

// RunEvent is published once a pack root has been validated.
type RunEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	RunID       string    `json:"run_id"`
	Root        string    `json:"root"`
	FileCount   int       `json:"file_count"`
	FailedFiles int       `json:"failed_files"`
	ErrorCount  int       `json:"error_count"`
	FoundErrors bool      `json:"found_errors"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type RunFilter struct {
	Root  string
	Limit int
}
