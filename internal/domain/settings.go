package domain

import "time"

// PasswordMask is sent back by the settings form to keep a stored password unchanged.
const PasswordMask = "••••••••"

// SystemSettings is the singleton integration configuration. Passwords are sealed.
type SystemSettings struct {
	SSHUser           string
	SSHPasswordSealed string

	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPasswordSealed string
	SMTPFrom           string
	SMTPUseSSL         bool
	SMTPUseTLS         bool

	UpdatedAt time.Time
}

// DefaultSystemSettings is the state before anything was configured.
func DefaultSystemSettings() SystemSettings {
	return SystemSettings{SMTPPort: 465, SMTPUseSSL: true}
}

// Dashboard aggregates client statistics for the landing page.
type Dashboard struct {
	Total            int          `json:"total"`
	Active           int          `json:"active"`
	Inactive         int          `json:"inactive"`
	NewThisMonth     int          `json:"new_this_month"`
	NewThisWeek      int          `json:"new_this_week"`
	ByMonth          []MonthCount `json:"by_month"`
	ByConnectionType []LabelCount `json:"by_connection_type"`
	ByProvider       []LabelCount `json:"by_provider"`
	RecentActivities []*Activity  `json:"recent_activities"`
}

// MonthCount is the number of clients created in a month ("2006-01").
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// LabelCount is a labelled counter.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
