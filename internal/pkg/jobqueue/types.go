package jobqueue

import (
	"context"
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeDeliverNotification JobType = "deliver_notification"
	JobTypeRefreshCapabilities JobType = "refresh_capabilities"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// Processor handles one job type. A returned error schedules a retry while
// the job has retries left.
type Processor func(ctx context.Context, job *Job) error

// Enqueuer is the part of the queue producers depend on.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
}

// DeliverNotificationPayload asks for out-of-app delivery of a stored
// notification.
type DeliverNotificationPayload struct {
	NotificationID string `json:"notification_id"`
}

func (p DeliverNotificationPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"notification_id": p.NotificationID}
}

func DeliverNotificationPayloadFromMap(data map[string]interface{}) (*DeliverNotificationPayload, error) {
	var payload DeliverNotificationPayload
	err := fromMap(data, &payload)
	return &payload, err
}

// RefreshCapabilitiesPayload asks for a capability snapshot to be recomputed.
type RefreshCapabilitiesPayload struct {
	UserID string `json:"user_id"`
}

func (p RefreshCapabilitiesPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{"user_id": p.UserID}
}

func RefreshCapabilitiesPayloadFromMap(data map[string]interface{}) (*RefreshCapabilitiesPayload, error) {
	var payload RefreshCapabilitiesPayload
	err := fromMap(data, &payload)
	return &payload, err
}

func fromMap(data map[string]interface{}, v interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, v)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed records the error and counts the attempt.
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
