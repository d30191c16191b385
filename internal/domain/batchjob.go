package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BatchJobStatus represents the lifecycle state of a batch job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted, and JobStatusFailed.
type BatchJobStatus string

const (
	JobStatusPending    BatchJobStatus = "pending"
	JobStatusProcessing BatchJobStatus = "processing"
	JobStatusCompleted  BatchJobStatus = "completed"
	JobStatusFailed     BatchJobStatus = "failed"
)

// Terminal reports whether a job in this status accepts no further transitions.
// Parameters: none.
// Returns:
//   - bool: true for completed and failed.
func (s BatchJobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BatchJobType selects the processor that executes a job.
type BatchJobType string

const (
	JobTypeCityIngestion      BatchJobType = "city_ingestion"
	JobTypeAllCitiesIngestion BatchJobType = "all_cities_ingestion"
	JobTypeMapGeneration      BatchJobType = "map_generation"
)

// Valid reports whether the type has a known processor.
// Parameters: none.
// Returns:
//   - bool: true for a recognized job type.
func (t BatchJobType) Valid() bool {
	switch t {
	case JobTypeCityIngestion, JobTypeAllCitiesIngestion, JobTypeMapGeneration:
		return true
	}
	return false
}

// logTimestampFormat is the timestamp layout used for execution log lines.
const logTimestampFormat = "2006-01-02 15:04:05"

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// BatchJob represents one unit of background work and its lifecycle metadata.
// The execution log is append-only: lines are never truncated or reordered.
type BatchJob struct {
	ID            string         `gorm:"type:text;primaryKey" json:"id"`
	Type          BatchJobType   `gorm:"type:text;not null;index:idx_batch_jobs_type" json:"type"`
	Target        string         `gorm:"type:text;not null" json:"target"`
	Status        BatchJobStatus `gorm:"type:text;index:idx_batch_jobs_status;default:pending" json:"status"`
	Progress      int            `gorm:"default:0" json:"progress"`
	Error         *string        `gorm:"type:text" json:"error,omitempty"`
	ResultSummary *string        `gorm:"type:text" json:"result_summary,omitempty"`
	LogLines      StringArray    `gorm:"type:text" json:"log_lines"`
	CreatedAt     time.Time      `gorm:"index:idx_batch_jobs_created_at" json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// TableName returns the database table name for BatchJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (BatchJob) TableName() string {
	return "batch_jobs"
}

// AppendLog appends a timestamped line to the execution log.
// Parameters:
//   - message: log line text, stored as "[yyyy-MM-dd HH:mm:ss] message".
// Returns: none.
func (j *BatchJob) AppendLog(message string) {
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(logTimestampFormat), message)
	j.LogLines = append(j.LogLines, entry)
}

// SetProgress raises the job progress to p, clamped to 0-100.
// Progress is monotone non-decreasing within one processing pass, so a lower
// value is ignored.
// Parameters:
//   - p: candidate progress percentage.
// Returns: none.
func (j *BatchJob) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// ExecutionLog returns the full execution log as one newline-joined string.
// Parameters: none.
// Returns:
//   - string: all log lines in append order.
func (j *BatchJob) ExecutionLog() string {
	return strings.Join(j.LogLines, "\n")
}
