package repository

import (
	"context"
	"sort"
	"time"

	"supportportal.io/portal/internal/domain"
)

// monthBounds returns [first day of month, first day of next month).
func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ListDuties returns the month's duty entries with user names.
func (q *Queries) ListDuties(ctx context.Context, year int, month time.Month) ([]*domain.DutyEntry, error) {
	from, to := monthBounds(year, month)
	rows, err := q.db.Query(ctx, `SELECT d.id, d.user_id,
		COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email),
		d.duty_date, d.duty_type
		FROM duty_entries d JOIN users u ON u.id = d.user_id
		WHERE d.duty_date >= $1 AND d.duty_date < $2
		ORDER BY d.duty_date, u.last_name, u.first_name`, from, to)
	if err != nil {
		return nil, mapErr(err, "list duties")
	}
	defer rows.Close()

	var out []*domain.DutyEntry
	for rows.Next() {
		var e domain.DutyEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Date, &kind); err != nil {
			return nil, mapErr(err, "scan duty")
		}
		e.DutyType = domain.DutyType(kind)
		out = append(out, &e)
	}
	return out, mapErr(rows.Err(), "list duties")
}

// SetDuty assigns a duty, replacing the user's entry for that date.
func (q *Queries) SetDuty(ctx context.Context, userID int64, date time.Time, t domain.DutyType) error {
	_, err := q.db.Exec(ctx, `INSERT INTO duty_entries (user_id, duty_date, duty_type) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, duty_date) DO UPDATE SET duty_type = EXCLUDED.duty_type`,
		userID, date, string(t))
	return mapErr(err, "set duty")
}

// ClearDuty removes the user's entry for a date. Missing entries are not an error.
func (q *Queries) ClearDuty(ctx context.Context, userID int64, date time.Time) error {
	_, err := q.db.Exec(ctx, `DELETE FROM duty_entries WHERE user_id = $1 AND duty_date = $2`, userID, date)
	return mapErr(err, "clear duty")
}

// ClearMonth removes every duty entry of a month and returns how many were deleted.
func (q *Queries) ClearMonth(ctx context.Context, year int, month time.Month) (int64, error) {
	from, to := monthBounds(year, month)
	tag, err := q.db.Exec(ctx, `DELETE FROM duty_entries WHERE duty_date >= $1 AND duty_date < $2`, from, to)
	if err != nil {
		return 0, mapErr(err, "clear month")
	}
	return tag.RowsAffected(), nil
}

// ListHolidays returns the month's holiday overrides.
func (q *Queries) ListHolidays(ctx context.Context, year int, month time.Month) ([]domain.Holiday, error) {
	from, to := monthBounds(year, month)
	rows, err := q.db.Query(ctx, `SELECT holiday_date, is_holiday FROM holidays
		WHERE holiday_date >= $1 AND holiday_date < $2 ORDER BY holiday_date`, from, to)
	if err != nil {
		return nil, mapErr(err, "list holidays")
	}
	defer rows.Close()

	out := []domain.Holiday{}
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.Date, &h.IsHoliday); err != nil {
			return nil, mapErr(err, "scan holiday")
		}
		out = append(out, h)
	}
	return out, mapErr(rows.Err(), "list holidays")
}

// SetHoliday overrides a date. A nil isHoliday resets it to the default calendar.
func (q *Queries) SetHoliday(ctx context.Context, date time.Time, isHoliday *bool) error {
	var err error
	if isHoliday == nil {
		_, err = q.db.Exec(ctx, `DELETE FROM holidays WHERE holiday_date = $1`, date)
	} else {
		_, err = q.db.Exec(ctx, `INSERT INTO holidays (holiday_date, is_holiday) VALUES ($1, $2)
			ON CONFLICT (holiday_date) DO UPDATE SET is_holiday = EXCLUDED.is_holiday`, date, *isHoliday)
	}
	return mapErr(err, "set holiday")
}

// DutyReport counts the month's duties per user and type. Users without
// entries are omitted.
func (q *Queries) DutyReport(ctx context.Context, year int, month time.Month) ([]*domain.DutyReportRow, error) {
	entries, err := q.ListDuties(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return BuildDutyReport(entries), nil
}

// BuildDutyReport folds entries into per-user rows ordered by user name.
func BuildDutyReport(entries []*domain.DutyEntry) []*domain.DutyReportRow {
	byUser := make(map[int64]*domain.DutyReportRow)
	var out []*domain.DutyReportRow
	for _, e := range entries {
		row, ok := byUser[e.UserID]
		if !ok {
			row = &domain.DutyReportRow{UserID: e.UserID, UserName: e.UserName, Counts: make(map[domain.DutyType]int)}
			for _, t := range domain.DutyTypes {
				row.Counts[t] = 0
			}
			byUser[e.UserID] = row
			out = append(out, row)
		}
		row.Counts[e.DutyType]++
		row.Total++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out
}
