// Package export renders client lists as XLSX workbooks.
//
// Columns are chosen by key: any field of the change-log registry, the derived
// router addresses, or a whole uplink group.
//
// Import Path: supportportal.io/portal/internal/export
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
)

// Derived columns and uplink groups accepted besides registry keys.
const (
	ColumnMikrotikIP = "mikrotik_ip"
	ColumnServerIP   = "server_ip"
	GroupProvider1   = "provider1"
	GroupProvider2   = "provider2"
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Clients"

// UnknownColumnError reports a requested column key that cannot be exported.
type UnknownColumnError struct {
	Key string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("export: unknown column %q", e.Key)
}

// Column is one exported column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	spec  *changelog.FieldSpec
}

// Row is one exported client with its custom field values keyed like the
// registry (domain.CustomFieldKey).
type Row struct {
	Client *domain.Client
	Custom map[string]string
}

// Exporter resolves columns against a registry and writes workbooks.
type Exporter struct {
	reg *changelog.Registry
}

// New creates an Exporter. reg is usually changelog.ClientFields extended with
// the active custom fields.
func New(reg *changelog.Registry) *Exporter {
	return &Exporter{reg: reg}
}

// Available lists every selectable column in display order.
func (e *Exporter) Available() []Column {
	cols := make([]Column, 0, e.reg.Len()+2)
	for _, s := range e.reg.Fields() {
		cols = append(cols, Column{Key: s.Key, Label: s.Label})
	}
	return append(cols,
		Column{Key: ColumnMikrotikIP, Label: "MikroTik IP"},
		Column{Key: ColumnServerIP, Label: "Server IP"},
	)
}

// Resolve expands keys into columns. Groups expand to every member of the
// uplink slot; duplicates keep their first position.
func (e *Exporter) Resolve(keys []string) ([]Column, error) {
	var cols []Column
	seen := make(map[string]bool, len(keys))
	add := func(c Column) {
		if !seen[c.Key] {
			seen[c.Key] = true
			cols = append(cols, c)
		}
	}

	for _, key := range keys {
		switch key {
		case ColumnMikrotikIP:
			add(Column{Key: key, Label: "MikroTik IP"})
		case ColumnServerIP:
			add(Column{Key: key, Label: "Server IP"})
		case GroupProvider1, GroupProvider2:
			slot := domain.SlotPrimary
			if key == GroupProvider2 {
				slot = domain.SlotSecondary
			}
			for _, f := range domain.UplinkFields {
				c, err := e.column(domain.UplinkKey(slot, f))
				if err != nil {
					return nil, err
				}
				add(c)
			}
		default:
			c, err := e.column(key)
			if err != nil {
				return nil, &UnknownColumnError{Key: key}
			}
			add(c)
		}
	}
	if len(cols) == 0 {
		return nil, &UnknownColumnError{Key: ""}
	}
	return cols, nil
}

func (e *Exporter) column(key string) (Column, error) {
	s, err := e.reg.Spec(key)
	if err != nil {
		return Column{}, err
	}
	return Column{Key: s.Key, Label: s.Label, spec: &s}, nil
}

// cell renders one value of row.
func (c Column) cell(row Row, refs changelog.RefNames) string {
	switch c.Key {
	case ColumnMikrotikIP:
		return row.Client.MikrotikIP()
	case ColumnServerIP:
		return row.Client.ServerIP()
	}
	if v, ok := row.Custom[c.Key]; ok {
		return changelog.FormatCell(*c.spec, v, refs)
	}
	raw, _ := row.Client.FieldValue(c.Key)
	return changelog.FormatCell(*c.spec, raw, refs)
}

// Write renders rows into a single-sheet workbook on w.
func (e *Exporter) Write(w io.Writer, cols []Column, rows []Row, refs changelog.RefNames) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, row := range rows {
		values := make([]any, len(cols))
		for j, c := range cols {
			values[j] = c.cell(row, refs)
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName is the download name of an export made at t.
func FileName(t time.Time) string {
	return "clients_" + t.Format("2006-01-02_1504") + ".xlsx"
}
