package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
)

func testExporter(t *testing.T) *Exporter {
	t.Helper()
	reg, err := changelog.ClientFields.With(changelog.CustomFieldSpecs([]*domain.CustomFieldDefinition{
		{ID: 7, Name: "Pharmacy chain", FieldType: domain.CustomFieldText, IsActive: true},
	})...)
	require.NoError(t, err)
	return New(reg)
}

func TestExporter_Resolve(t *testing.T) {
	e := testExporter(t)

	cols, err := e.Resolve([]string{domain.FieldLastName, ColumnMikrotikIP, GroupProvider2, domain.FieldLastName})
	require.NoError(t, err)
	require.Len(t, cols, 2+len(domain.UplinkFields))
	assert.Equal(t, domain.FieldLastName, cols[0].Key)
	assert.Equal(t, "MikroTik IP", cols[1].Label)
	assert.Equal(t, domain.UplinkKey(domain.SlotSecondary, domain.UplinkProvider), cols[2].Key)
	assert.Equal(t, "Provider 2", cols[2].Label)

	_, err = e.Resolve([]string{"password"})
	var unknown *UnknownColumnError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "password", unknown.Key)

	_, err = e.Resolve(nil)
	assert.Error(t, err)
}

func TestExporter_Available(t *testing.T) {
	cols := testExporter(t).Available()
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = c.Key
	}
	assert.Contains(t, keys, domain.CustomFieldKey(7))
	assert.Equal(t, ColumnServerIP, keys[len(keys)-1])
}

func TestExporter_Write(t *testing.T) {
	e := testExporter(t)
	providerID := int64(3)
	client := &domain.Client{
		LastName: "Ivanova",
		Subnet:   "10.20.30.0/24",
		Status:   domain.ClientStatusActive,
	}
	client.Uplinks[0].ProviderID = &providerID
	client.Uplinks[0].ProviderSettings = string(bytes.Repeat([]byte("s"), 80))

	cols, err := e.Resolve([]string{
		domain.FieldLastName,
		domain.FieldStatus,
		domain.UplinkKey(domain.SlotPrimary, domain.UplinkProvider),
		domain.UplinkKey(domain.SlotPrimary, domain.UplinkProviderSettings),
		domain.FieldPhone,
		ColumnMikrotikIP,
		ColumnServerIP,
		domain.CustomFieldKey(7),
	})
	require.NoError(t, err)

	refs := changelog.RefNames{changelog.RefProviders: {3: "Rostelecom"}}
	rows := []Row{{Client: client, Custom: map[string]string{domain.CustomFieldKey(7): "Apteka+"}}}

	var buf bytes.Buffer
	require.NoError(t, e.Write(&buf, cols, rows, refs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Clients"}, f.GetSheetList())
	got, err := f.GetRows("Clients")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{
		"Last name", "Status", "Provider", "Provider settings", "Phone", "MikroTik IP", "Server IP", "Pharmacy chain",
	}, got[0])

	row := got[1]
	assert.Equal(t, "Ivanova", row[0])
	assert.Equal(t, "Active", row[1])
	assert.Equal(t, "Rostelecom", row[2])
	assert.Len(t, row[3], 80, "export keeps full text")
	assert.Equal(t, "", row[4])
	assert.Equal(t, "10.20.30.1", row[5])
	assert.Equal(t, "10.20.30.2", row[6])
	assert.Equal(t, "Apteka+", row[7])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "clients_2026-10-17_0905.xlsx", FileName(time.Date(2026, 10, 17, 9, 5, 0, 0, time.UTC)))
}
