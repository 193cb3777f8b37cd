package jobmon

import "errors"

// ErrJobExists is returned by Registry.Start when the key already maps to a
// job that has not finished yet. Recoverable: pick another key, wait, or
// treat the running job as the answer.
var ErrJobExists = errors.New("a job with that ID already exists")

// ErrJobFailed is returned by Job.Wait when the job's classified outcome
// was failure, including panics. It carries no payload; the human-readable
// reason is available from Status().Message().
var ErrJobFailed = errors.New("the job failed")
