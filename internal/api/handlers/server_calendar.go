package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
)

const dateLayout = "2006-01-02"

// monthQuery reads ?year=&month=, defaulting to the current month.
func (s *Server) monthQuery(c *gin.Context) (int, time.Month, bool) {
	now := s.now()
	year, month := now.Year(), now.Month()
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			_ = c.Error(apperrors.ErrInvalidRequestf("year %q is not valid", v))
			return 0, 0, false
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			_ = c.Error(apperrors.ErrInvalidRequestf("month %q is not valid", v))
			return 0, 0, false
		}
		month = time.Month(m)
	}
	return year, month, true
}

func parseDate(v string) (time.Time, error) {
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, apperrors.ErrInvalidRequestf("date %q must be YYYY-MM-DD", v)
	}
	return d, nil
}

// parseDutyType accepts "" as "clear the cell".
func parseDutyType(v string) (domain.DutyType, error) {
	t := domain.DutyType(v)
	if t != "" && !t.Valid() {
		return "", apperrors.ErrInvalidRequestf("unknown duty type %q", v)
	}
	return t, nil
}

// ListDuties handles GET /api/calendar.
func (s *Server) ListDuties(c *gin.Context) {
	year, month, ok := s.monthQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	entries, err := s.queries.ListDuties(ctx, year, month)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	holidays, err := s.queries.ListHolidays(ctx, year, month)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if entries == nil {
		entries = []*domain.DutyEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"year":     year,
		"month":    int(month),
		"entries":  entries,
		"holidays": holidays,
	})
}

type dutyCell struct {
	UserID int64  `json:"user_id" binding:"required"`
	Date   string `json:"date" binding:"required"`
}

type setDutyRequest struct {
	dutyCell
	DutyType string `json:"duty_type"`
}

// SetDuty handles POST /api/calendar/duty. An empty duty_type clears the cell.
func (s *Server) SetDuty(c *gin.Context) {
	var req setDutyRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := parseDutyType(req.DutyType)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.applyDuty(c, req.dutyCell, t); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkDutyRequest struct {
	Cells    []dutyCell `json:"cells" binding:"required"`
	DutyType string     `json:"duty_type"`
}

// BulkSetDuty handles POST /api/calendar/duty/bulk. All cells are validated
// before any is written.
func (s *Server) BulkSetDuty(c *gin.Context) {
	var req bulkDutyRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := parseDutyType(req.DutyType)
	if err != nil {
		_ = c.Error(err)
		return
	}
	for _, cell := range req.Cells {
		if _, err := parseDate(cell.Date); err != nil {
			_ = c.Error(err)
			return
		}
	}
	for _, cell := range req.Cells {
		if err := s.applyDuty(c, cell, t); err != nil {
			_ = c.Error(err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(req.Cells)})
}

func (s *Server) applyDuty(c *gin.Context, cell dutyCell, t domain.DutyType) error {
	date, err := parseDate(cell.Date)
	if err != nil {
		return err
	}
	ctx := c.Request.Context()
	if t == "" {
		err = s.queries.ClearDuty(ctx, cell.UserID, date)
	} else {
		err = s.queries.SetDuty(ctx, cell.UserID, date, t)
	}
	if err != nil {
		return notFoundAs(err, apperrors.CodeUserNotFound, "user not found")
	}
	return nil
}

type holidayRequest struct {
	Date string `json:"date" binding:"required"`
	// IsHoliday true marks a holiday, false a working day, null resets the date.
	IsHoliday *bool `json:"is_holiday"`
}

// SetHoliday handles POST /api/calendar/holiday.
func (s *Server) SetHoliday(c *gin.Context) {
	var req holidayRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.queries.SetHoliday(c.Request.Context(), date, req.IsHoliday); err != nil {
		_ = c.Error(persistence(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// DutyReport handles GET /api/calendar/report.
func (s *Server) DutyReport(c *gin.Context) {
	year, month, ok := s.monthQuery(c)
	if !ok {
		return
	}
	rows, err := s.queries.DutyReport(c.Request.Context(), year, month)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if rows == nil {
		rows = []*domain.DutyReportRow{}
	}
	c.JSON(http.StatusOK, gin.H{
		"year":       year,
		"month":      int(month),
		"duty_types": domain.DutyTypes,
		"rows":       rows,
	})
}

// ClearMonth handles DELETE /api/calendar/month.
func (s *Server) ClearMonth(c *gin.Context) {
	year, month, ok := s.monthQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	n, err := s.queries.ClearMonth(ctx, year, month)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	s.logAudit(ctx, "calendar.clear_month", "calendar", time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
		map[string]any{"deleted": n})
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
