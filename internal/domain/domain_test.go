package domain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func ptr(v int64) *int64 { return &v }

func TestClient_DisplayName(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		want   string
	}{
		{"company wins", Client{ID: 1, Company: "Pharmacy 12", Address: "Main st"}, "Pharmacy 12"},
		{"address fallback", Client{ID: 1, Address: "Main st"}, "Main st"},
		{"id fallback", Client{ID: 7}, "Client #7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.client.DisplayName())
		})
	}
}

func TestClient_DerivedAddresses(t *testing.T) {
	tests := []struct {
		subnet   string
		mikrotik string
		server   string
	}{
		{"10.20.30.0/24", "10.20.30.1", "10.20.30.2"},
		{"192.168.5.0", "192.168.5.1", "192.168.5.2"},
		{"", "", ""},
		{"not-an-ip", "", ""},
		{"10.0.0/24", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.subnet, func(t *testing.T) {
			c := Client{Subnet: tt.subnet}
			assert.Equal(t, tt.mikrotik, c.MikrotikIP())
			assert.Equal(t, tt.server, c.ServerIP())
		})
	}
}

func TestClient_FieldValue(t *testing.T) {
	c := &Client{Company: "Acme", Status: ClientStatusActive}
	c.Uplink(SlotPrimary).ProviderID = ptr(3)
	c.Uplink(SlotSecondary).Tariff = "100M"
	c.Uplink(SlotSecondary).ProviderEquipment = true

	v, ok := c.FieldValue(FieldCompany)
	require.True(t, ok)
	assert.Equal(t, "Acme", v)

	v, ok = c.FieldValue("provider_id")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)

	v, ok = c.FieldValue("provider2_id")
	require.True(t, ok)
	assert.Nil(t, v)

	v, _ = c.FieldValue("tariff2")
	assert.Equal(t, "100M", v)
	v, _ = c.FieldValue("provider_equipment2")
	assert.Equal(t, true, v)

	_, ok = c.FieldValue("no_such_field")
	assert.False(t, ok)
}

func TestClientFieldKeys_CoverBothSlots(t *testing.T) {
	keys := ClientFieldKeys()
	for slot := SlotPrimary; slot <= SlotSecondary; slot++ {
		for _, f := range UplinkFields {
			assert.Contains(t, keys, UplinkKey(slot, f))
		}
	}
	assert.Equal(t, FieldLastName, keys[0])
}

func TestClient_ApplyPatch(t *testing.T) {
	var patch map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"company": "Acme",
		"status": "inactive",
		"provider": 5,
		"provider2": null,
		"ofd_company": "9",
		"connection_type2": "fiber",
		"provider_equipment": "yes",
		"phone": 79001234567,
		"unknown": "ignored"
	}`), &patch))

	c := &Client{Status: ClientStatusActive}
	c.Uplink(SlotSecondary).ProviderID = ptr(2)
	require.NoError(t, c.ApplyPatch(patch))

	assert.Equal(t, "Acme", c.Company)
	assert.Equal(t, ClientStatusInactive, c.Status)
	assert.Equal(t, ptr(5), c.Uplinks[0].ProviderID)
	assert.Nil(t, c.Uplinks[1].ProviderID)
	assert.Equal(t, ptr(9), c.OFDCompanyID)
	assert.Equal(t, ConnectionFiber, c.Uplinks[1].ConnectionType)
	assert.True(t, c.Uplinks[0].ProviderEquipment)
	assert.Equal(t, "79001234567", c.Phone)
}

func TestClient_ApplyPatch_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		patch map[string]any
		key   string
	}{
		{"unknown status", map[string]any{"status": "gone"}, FieldStatus},
		{"unknown connection type", map[string]any{"connection_type": "pigeon"}, "connection_type"},
		{"fractional id", map[string]any{"provider": 1.5}, "provider_id"},
		{"negative id", map[string]any{"provider": -1.0}, "provider_id"},
		{"object as text", map[string]any{"email": map[string]any{}}, FieldEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Client{}).ApplyPatch(tt.patch)
			var fe *FieldValueError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.key, fe.Key)
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{"TRUE", true},
		{"Yes", true},
		{"1", true},
		{"no", false},
		{"", false},
		{nil, false},
		{1.0, true},
		{0.0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.in), "Truthy(%#v)", tt.in)
	}
}

func TestUser_Permissions(t *testing.T) {
	u := &User{Role: &Role{CanEditClient: true, CanViewAllClients: true}}
	assert.Equal(t, []string{PermViewAllClients, PermEditClient}, u.Permissions())

	u = &User{}
	assert.Empty(t, u.Permissions())

	u = &User{IsSuperuser: true}
	assert.ElementsMatch(t, AllPermissions, u.Permissions())
}

func TestDutyType_Valid(t *testing.T) {
	assert.True(t, DutyPhoneDay.Valid())
	assert.False(t, DutyType("night").Valid())
}

func TestEventDispatcher(t *testing.T) {
	d := NewEventDispatcher()
	var calls []string
	d.Register(EventClientDeleted, func(ctx context.Context, e *DomainEvent) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Register(EventClientDeleted, func(ctx context.Context, e *DomainEvent) error {
		calls = append(calls, "second")
		return nil
	})

	err := d.Dispatch(context.Background(), NewEvent(EventClientDeleted, 4, nil, ClientDeletedPayload{}))
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)

	assert.NoError(t, d.Dispatch(context.Background(), NewEvent(EventClientCreated, 4, nil, nil)))

	var nilDispatcher *EventDispatcher
	assert.NoError(t, nilDispatcher.Dispatch(context.Background(), NewEvent(EventClientCreated, 1, nil, nil)))
}
