package model

import "time"

// Sync run origins.
const (
	OriginUser     = "user"
	OriginSchedule = "schedule"
	OriginCLI      = "cli"
)

// SyncRun summarizes one sync of one tenant. It is what the last-result
// cache stores and what the ReservationsSynced event carries.
type SyncRun struct {
	TenantID    string    `json:"tenant_id"`
	PMSType     string    `json:"pms_type,omitempty"`
	Origin      string    `json:"origin"`
	WindowStart string    `json:"window_start,omitempty"`
	WindowEnd   string    `json:"window_end,omitempty"`
	Success     bool      `json:"success"`
	Count       int       `json:"count"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration is how long the run took.
func (r SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
