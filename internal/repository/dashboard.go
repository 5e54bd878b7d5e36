package repository

import (
	"context"
	"time"

	"supportportal.io/portal/internal/domain"
)

// Dashboard computes client statistics relative to now. Drafts are excluded.
func (q *Queries) Dashboard(ctx context.Context, now time.Time) (*domain.Dashboard, error) {
	d := &domain.Dashboard{}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)

	err := q.db.QueryRow(ctx, `SELECT count(*),
		count(*) FILTER (WHERE status = 'active'),
		count(*) FILTER (WHERE status = 'inactive'),
		count(*) FILTER (WHERE created_at >= $1),
		count(*) FILTER (WHERE created_at >= $2)
		FROM clients WHERE NOT is_draft`, monthStart, weekStart).
		Scan(&d.Total, &d.Active, &d.Inactive, &d.NewThisMonth, &d.NewThisWeek)
	if err != nil {
		return nil, mapErr(err, "dashboard totals")
	}

	from := monthStart.AddDate(0, -5, 0)
	byMonth, err := q.labelCounts(ctx, `SELECT to_char(date_trunc('month', created_at), 'YYYY-MM'), count(*)
		FROM clients WHERE NOT is_draft AND created_at >= $1 GROUP BY 1`, from)
	if err != nil {
		return nil, mapErr(err, "dashboard by month")
	}
	d.ByMonth = fillMonths(from, 6, byMonth)

	if d.ByConnectionType, err = q.labelCounts(ctx, `SELECT connection_type, count(*)
		FROM clients WHERE NOT is_draft AND connection_type <> '' GROUP BY 1 ORDER BY 2 DESC, 1`); err != nil {
		return nil, mapErr(err, "dashboard by connection type")
	}
	if d.ByProvider, err = q.labelCounts(ctx, `SELECT p.name, count(*)
		FROM clients c JOIN providers p ON p.id = c.provider_id
		WHERE NOT c.is_draft GROUP BY p.name ORDER BY 2 DESC, 1`); err != nil {
		return nil, mapErr(err, "dashboard by provider")
	}
	if d.RecentActivities, err = q.RecentActivities(ctx, 10); err != nil {
		return nil, err
	}
	return d, nil
}

func (q *Queries) labelCounts(ctx context.Context, sql string, args ...any) ([]domain.LabelCount, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.LabelCount{}
	for rows.Next() {
		var lc domain.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// fillMonths lays counts over n consecutive months starting at from, zero-filling gaps.
func fillMonths(from time.Time, n int, counts []domain.LabelCount) []domain.MonthCount {
	byLabel := make(map[string]int, len(counts))
	for _, c := range counts {
		byLabel[c.Label] = c.Count
	}
	out := make([]domain.MonthCount, n)
	for i := range out {
		m := from.AddDate(0, i, 0).Format("2006-01")
		out[i] = domain.MonthCount{Month: m, Count: byLabel[m]}
	}
	return out
}
