package scheduler

import "errors"

var (
	// ErrInvalidSchedule is returned for a cron expression the scheduler cannot honor
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrAlreadyRunning is returned when Run is called on a scheduler that is running
	ErrAlreadyRunning = errors.New("scheduler is already running")

	// ErrJobFailed is returned when a job still fails after all retries
	ErrJobFailed = errors.New("scheduled job failed")
)
