package schedule

import "time"

// Job is a periodic re-verification task: rescan a module's CRC-covered
// sections on the schedule named by CronExpr and raise an alert if a
// previously CRC-valid module now fails validation.
type Job struct {
	ID          int64
	Name        string
	CronExpr    string
	Programmer  string
	Address     byte
	Length      int // bytes to re-read, matches the cached snapshot size
	Enabled     bool
	LastRunID   *int64
	LastRunTime *time.Time
	NextRunTime *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobFilter narrows List.
type JobFilter struct {
	Programmer string
	Enabled    *bool
}
