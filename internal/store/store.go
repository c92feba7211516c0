package store

// Store persists optimization checkpoints.
// Implementations must be safe for concurrent use.
//
// Load and Delete return an error matching ErrNotFound when the job has no
// checkpoint. Other failures are wrapped with context.
type Store interface {
	// SaveCheckpoint atomically replaces the checkpoint of jobID.
	SaveCheckpoint(jobID string, checkpoint *Checkpoint) error

	// LoadCheckpoint returns the checkpoint of jobID.
	LoadCheckpoint(jobID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for all checkpoints, oldest first.
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the checkpoint and every artifact of jobID,
	// including its trace.
	DeleteCheckpoint(jobID string) error

	// JobDir returns the directory that holds the artifacts of jobID.
	JobDir(jobID string) string
}

// ErrNotFound is returned when a requested checkpoint does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing checkpoint error.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "checkpoint not found: " + e.JobID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
