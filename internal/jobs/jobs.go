// Package jobs defines River Queue job types for background processing.
//
// Jobs carry only identifiers and parameters; workers load current state from
// PostgreSQL when they run.
//
// Import Path: supportportal.io/portal/internal/jobs
package jobs

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueIntegrations runs jobs that talk to external systems (OFD, SMTP).
const QueueIntegrations = "integrations"

// DefaultOFDRefreshInterval is used when ofd.refresh_interval is unset.
const DefaultOFDRefreshInterval = 24 * time.Hour

// PeriodicJobs returns the portal's scheduled jobs.
func PeriodicJobs(ofdInterval time.Duration) []*river.PeriodicJob {
	if ofdInterval <= 0 {
		ofdInterval = DefaultOFDRefreshInterval
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(ofdInterval),
			func() (river.JobArgs, *river.InsertOpts) { return OFDRefreshArgs{}, nil },
			&river.PeriodicJobOpts{RunOnStart: false},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) { return AuditCleanupArgs{}, nil },
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}
