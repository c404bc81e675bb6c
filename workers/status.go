package workers

import "time"

// JobState is the lifecycle position of the current (or last) background job
type JobState string

const (
	JobIdle      JobState = "idle"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// maximum number of error strings retained for display; failure counters
// keep counting past the cap
const maxJobErrors = 100

// ImportStatus is the singleton-per-run record for an import job. External
// readers only ever see snapshots.
type ImportStatus struct {
	State             JobState   `json:"status"`
	TotalFiles        int        `json:"total_files"`
	ProcessedFiles    int        `json:"processed_files"`
	SuccessfulImports int        `json:"successful_imports"`
	FailedImports     int        `json:"failed_imports"`
	SkippedDuplicates int        `json:"skipped_duplicates"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Errors            []string   `json:"errors"`
}

// RegenerationStatus is the singleton-per-run record for a regeneration job
type RegenerationStatus struct {
	State               JobState   `json:"status"`
	TotalMedia          int        `json:"total_media"`
	ProcessedMedia      int        `json:"processed_media"`
	UpdatedMetadata     int        `json:"updated_metadata"`
	GeneratedThumbnails int        `json:"generated_thumbnails"`
	UpdatedTags         int        `json:"updated_tags"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Errors              []string   `json:"errors"`
}

// appendJobError caps the stored error log without capping the counters
func appendJobError(errors []string, message string) []string {
	if len(errors) < maxJobErrors {
		return append(errors, message)
	}
	if len(errors) == maxJobErrors {
		return append(errors, "(additional errors truncated)")
	}
	return errors
}
