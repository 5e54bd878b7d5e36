package domain

import "time"

// DutyType is the kind of a duty calendar cell.
type DutyType string

const (
	DutyPhone    DutyType = "phone"
	DutyDay      DutyType = "day"
	DutyPhoneDay DutyType = "phone_day"
	DutyVacation DutyType = "vacation"
	DutyBusy     DutyType = "busy"
)

// DutyTypes lists duty types in report column order.
var DutyTypes = []DutyType{DutyPhone, DutyDay, DutyPhoneDay, DutyVacation, DutyBusy}

// Valid reports whether t is a known duty type.
func (t DutyType) Valid() bool {
	for _, d := range DutyTypes {
		if d == t {
			return true
		}
	}
	return false
}

// DutyEntry assigns a duty to a user on a date. One entry per user and date.
type DutyEntry struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	UserName string    `json:"user_name"`
	Date     time.Time `json:"date"`
	DutyType DutyType  `json:"duty_type"`
}

// Holiday overrides the working-day status of a date.
type Holiday struct {
	Date      time.Time `json:"date"`
	IsHoliday bool      `json:"is_holiday"`
}

// DutyReportRow counts one user's duties in a month.
type DutyReportRow struct {
	UserID   int64            `json:"user_id"`
	UserName string           `json:"user_name"`
	Counts   map[DutyType]int `json:"counts"`
	Total    int              `json:"total"`
}
