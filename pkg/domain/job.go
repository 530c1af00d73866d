package domain

// JobState is the remote bulk-import job status value.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether no further progress will occur for this state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is the job-status endpoint payload for one bulk import.
type JobStatus struct {
	JobID     string     `json:"job_id"`
	State     JobState   `json:"state"`
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors,omitempty"`
}
