package wpimport

// Status is the lifecycle state of an import job as seen by consumers.
// Unknown is the logical state when the cache holds nothing, whether
// because the job never ran or because its entry expired.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusUnknown    Status = "unknown"
)

// JobStatus is the cached payload for one import job.
type JobStatus struct {
	Status       Status `json:"status"`
	ImportID     string `json:"importId"`
	RunID        string `json:"runId,omitempty"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Deleted      int    `json:"deleted"`
	Skipped      int    `json:"skipped"`
	StartTime    int64  `json:"startTime,omitempty"`    // unix seconds
	EndTime      int64  `json:"endTime,omitempty"`      // unix seconds
	ReceivedTime int64  `json:"receivedTime,omitempty"` // unix seconds
	Message      string `json:"message,omitempty"`
}

// Completion carries the figures reported by the remote system when an
// import finishes.
type Completion struct {
	Created   int
	Updated   int
	Deleted   int
	Skipped   int
	StartTime int64
	EndTime   int64
}
