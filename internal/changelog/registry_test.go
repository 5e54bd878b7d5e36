package changelog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/domain"
)

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		specs []FieldSpec
	}{
		{"duplicate key", []FieldSpec{{Key: "a", Kind: KindPlain}, {Key: "a", Kind: KindPlain}}},
		{"empty key", []FieldSpec{{Label: "x", Kind: KindPlain}}},
		{"truncated without cap", []FieldSpec{{Key: "a", Kind: KindTruncated}}},
		{"reference without set", []FieldSpec{{Key: "a", Kind: KindReference}}},
		{"unknown kind", []FieldSpec{{Key: "a", Kind: "weird"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.specs...)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustRegistry(FieldSpec{Key: "a"}) })
}

func TestRegistry_ResolveLabel(t *testing.T) {
	label, err := ClientFields.ResolveLabel(domain.FieldStatus)
	require.NoError(t, err)
	assert.Equal(t, "Status", label)

	_, err = ClientFields.ResolveLabel("favourite_colour")
	var unknown *UnknownFieldError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "favourite_colour", unknown.Key)
}

func TestRegistry_SubsetKeepsRegistryOrder(t *testing.T) {
	sub, err := ClientFields.Subset(domain.FieldPharmacyCode, domain.FieldLastName, "tariff2")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.FieldLastName, "tariff2", domain.FieldPharmacyCode}, sub.Keys())

	_, err = ClientFields.Subset("nope")
	assert.Error(t, err)
}

func TestRegistry_FieldsIsACopy(t *testing.T) {
	fields := ClientFields.Fields()
	fields[0].Label = "mutated"

	label, err := ClientFields.ResolveLabel(fields[0].Key)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", label)
}

func TestRegistry_With(t *testing.T) {
	reg, err := ClientFields.With(FieldSpec{Key: "custom_1", Label: "Region", Kind: KindPlain})
	require.NoError(t, err)
	assert.Equal(t, ClientFields.Len()+1, reg.Len())
	assert.False(t, ClientFields.Has("custom_1"))

	_, err = ClientFields.With(FieldSpec{Key: domain.FieldPhone, Kind: KindPlain})
	assert.Error(t, err)
}

func TestClientFields_MatchesDomainTable(t *testing.T) {
	assert.Equal(t, domain.ClientFieldKeys(), ClientFields.Keys())

	spec, err := ClientFields.Spec("provider2_id")
	require.NoError(t, err)
	assert.Equal(t, KindReference, spec.Kind)
	assert.Equal(t, "provider2", spec.SubmitKey)
	assert.Equal(t, "Provider 2", spec.Label)
}

func TestCustomFieldSpecs(t *testing.T) {
	specs := CustomFieldSpecs([]*domain.CustomFieldDefinition{
		{ID: 1, Name: "Region", FieldType: domain.CustomFieldSelect, IsActive: true},
		{ID: 2, Name: "Comment", FieldType: domain.CustomFieldText, IsActive: true},
		{ID: 3, Name: "Legacy", FieldType: domain.CustomFieldText, IsActive: false},
	})
	require.Len(t, specs, 2)
	assert.Equal(t, "custom_1", specs[0].Key)
	assert.Equal(t, KindPlain, specs[0].Kind)
	assert.Equal(t, KindTruncated, specs[1].Kind)
}

func TestFormatValue(t *testing.T) {
	status, _ := ClientFields.Spec(domain.FieldStatus)
	equipment, _ := ClientFields.Spec("provider_equipment")
	settings, _ := ClientFields.Spec("provider_settings")
	phone, _ := ClientFields.Spec(domain.FieldPhone)
	provider, _ := ClientFields.Spec("provider_id")

	tests := []struct {
		name string
		spec FieldSpec
		raw  any
		want string
	}{
		{"plain empty", phone, "", Placeholder},
		{"plain nil", phone, nil, Placeholder},
		{"plain value", phone, "+7 900", "+7 900"},
		{"plain number", phone, 79001234567.0, "79001234567"},
		{"enum known", status, "active", "Active"},
		{"enum unknown falls back", status, "archived", "archived"},
		{"enum empty", status, "", Placeholder},
		{"bool true", equipment, true, "Yes"},
		{"bool string yes", equipment, "YES", "Yes"},
		{"bool string 1", equipment, "1", "Yes"},
		{"bool false", equipment, false, "No"},
		{"bool nil", equipment, nil, "No"},
		{"truncated short", settings, "vlan 10", "vlan 10"},
		{"truncated long", settings, strings.Repeat("x", 60), strings.Repeat("x", 50) + Ellipsis},
		{"reference unset", provider, nil, Placeholder},
		{"reference zero", provider, int64(0), Placeholder},
		{"reference without names", provider, int64(4), "#4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.spec, tt.raw))
		})
	}
}

func TestRegistry_FormatResolvesReferences(t *testing.T) {
	refs := RefNames{RefProviders: {4: "FastNet"}}

	got, err := ClientFields.Format("provider_id", int64(4), refs)
	require.NoError(t, err)
	assert.Equal(t, "FastNet", got)

	got, err = ClientFields.Format("provider_id", int64(5), refs)
	require.NoError(t, err)
	assert.Equal(t, "#5", got)

	_, err = ClientFields.Format("ghost", "x", refs)
	assert.Error(t, err)
}

func TestTruncate_Runes(t *testing.T) {
	assert.Equal(t, "Жук"+Ellipsis, Truncate("Жукова", 3))
	assert.Equal(t, "Жук", Truncate("Жук", 3))
	assert.Equal(t, "", Truncate("", 3))
}

func TestFormatCell(t *testing.T) {
	refs := RefNames{RefProviders: {3: "Rostelecom"}}
	long := strings.Repeat("x", providerSettingsTruncateAt+10)

	settings, err := ClientFields.Spec(domain.UplinkKey(domain.SlotPrimary, domain.UplinkProviderSettings))
	require.NoError(t, err)
	provider, err := ClientFields.Spec(domain.UplinkKey(domain.SlotPrimary, domain.UplinkProvider))
	require.NoError(t, err)
	equipment, err := ClientFields.Spec(domain.UplinkKey(domain.SlotPrimary, domain.UplinkProviderEquipment))
	require.NoError(t, err)
	status, err := ClientFields.Spec(domain.FieldStatus)
	require.NoError(t, err)

	assert.Equal(t, long, FormatCell(settings, long, refs))
	assert.Equal(t, "", FormatCell(settings, "  ", refs))
	assert.Equal(t, "Rostelecom", FormatCell(provider, int64(3), refs))
	assert.Equal(t, "", FormatCell(provider, nil, refs))
	assert.Equal(t, labelNo, FormatCell(equipment, false, refs))
	assert.Equal(t, "Active", FormatCell(status, "active", refs))
}
