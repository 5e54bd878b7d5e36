package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Client field keys. These are the keys of snapshots, change logs and exports.
const (
	FieldLastName     = "last_name"
	FieldFirstName    = "first_name"
	FieldMiddleName   = "middle_name"
	FieldINN          = "inn"
	FieldPhone        = "phone"
	FieldEmail        = "email"
	FieldCompany      = "company"
	FieldAddress      = "address"
	FieldStatus       = "status"
	FieldOFDCompanyID = "ofd_company_id"
	FieldSubnet       = "subnet"
	FieldExternalIP   = "external_ip"
	FieldICCID        = "iccid"
	FieldPharmacyCode = "pharmacy_code"
)

// UplinkField names one member of an Uplink independent of its slot.
type UplinkField int

const (
	UplinkProvider UplinkField = iota
	UplinkPersonalAccount
	UplinkContractNumber
	UplinkTariff
	UplinkConnectionType
	UplinkModemNumber
	UplinkModemICCID
	UplinkProviderSettings
	UplinkProviderEquipment

	uplinkFieldCount
)

// UplinkFields lists every uplink member in display order.
var UplinkFields = [uplinkFieldCount]UplinkField{
	UplinkProvider,
	UplinkPersonalAccount,
	UplinkContractNumber,
	UplinkTariff,
	UplinkConnectionType,
	UplinkModemNumber,
	UplinkModemICCID,
	UplinkProviderSettings,
	UplinkProviderEquipment,
}

// uplinkKeys maps (slot, member) to the stored field key. Slot 2 keys carry the "2" suffix.
var uplinkKeys = [2][uplinkFieldCount]string{
	{
		"provider_id", "personal_account", "contract_number", "tariff", "connection_type",
		"modem_number", "modem_iccid", "provider_settings", "provider_equipment",
	},
	{
		"provider2_id", "personal_account2", "contract_number2", "tariff2", "connection_type2",
		"modem_number2", "modem_iccid2", "provider_settings2", "provider_equipment2",
	},
}

// uplinkSubmitKeys holds the request keys for uplink references ("provider" for provider_id).
var uplinkSubmitKeys = [2]string{"provider", "provider2"}

// UplinkKey returns the field key of member f in slot.
func UplinkKey(slot int, f UplinkField) string {
	if !ValidSlot(slot) {
		panic(fmt.Sprintf("domain: invalid uplink slot %d", slot))
	}
	return uplinkKeys[slot-1][f]
}

// FieldValueError reports a patch value of the wrong shape.
type FieldValueError struct {
	Key    string
	Reason string
}

func (e *FieldValueError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
}

type clientField struct {
	key    string
	submit string
	get    func(c *Client) any
	set    func(c *Client, v any) error
}

var (
	clientFieldTable []clientField
	clientFieldIndex map[string]int
)

func init() {
	str := func(key string, p func(c *Client) *string) clientField {
		return clientField{
			key:    key,
			submit: key,
			get:    func(c *Client) any { return *p(c) },
			set: func(c *Client, v any) error {
				s, err := asString(key, v)
				if err != nil {
					return err
				}
				*p(c) = s
				return nil
			},
		}
	}
	ref := func(key, submit string, p func(c *Client) **int64) clientField {
		return clientField{
			key:    key,
			submit: submit,
			get: func(c *Client) any {
				if id := *p(c); id != nil {
					return *id
				}
				return nil
			},
			set: func(c *Client, v any) error {
				id, err := AsID(key, v)
				if err != nil {
					return err
				}
				*p(c) = id
				return nil
			},
		}
	}

	clientFieldTable = []clientField{
		str(FieldLastName, func(c *Client) *string { return &c.LastName }),
		str(FieldFirstName, func(c *Client) *string { return &c.FirstName }),
		str(FieldMiddleName, func(c *Client) *string { return &c.MiddleName }),
		str(FieldINN, func(c *Client) *string { return &c.INN }),
		str(FieldPhone, func(c *Client) *string { return &c.Phone }),
		str(FieldEmail, func(c *Client) *string { return &c.Email }),
		str(FieldCompany, func(c *Client) *string { return &c.Company }),
		str(FieldAddress, func(c *Client) *string { return &c.Address }),
		{
			key:    FieldStatus,
			submit: FieldStatus,
			get:    func(c *Client) any { return string(c.Status) },
			set: func(c *Client, v any) error {
				s, err := asString(FieldStatus, v)
				if err != nil {
					return err
				}
				if !ClientStatus(s).Valid() {
					return &FieldValueError{Key: FieldStatus, Reason: fmt.Sprintf("unknown status %q", s)}
				}
				c.Status = ClientStatus(s)
				return nil
			},
		},
		ref(FieldOFDCompanyID, "ofd_company", func(c *Client) **int64 { return &c.OFDCompanyID }),
	}

	for slot := SlotPrimary; slot <= SlotSecondary; slot++ {
		idx := slot - 1
		key := func(f UplinkField) string { return uplinkKeys[idx][f] }
		clientFieldTable = append(clientFieldTable,
			ref(key(UplinkProvider), uplinkSubmitKeys[idx], func(c *Client) **int64 { return &c.Uplinks[idx].ProviderID }),
			str(key(UplinkPersonalAccount), func(c *Client) *string { return &c.Uplinks[idx].PersonalAccount }),
			str(key(UplinkContractNumber), func(c *Client) *string { return &c.Uplinks[idx].ContractNumber }),
			str(key(UplinkTariff), func(c *Client) *string { return &c.Uplinks[idx].Tariff }),
			clientField{
				key:    key(UplinkConnectionType),
				submit: key(UplinkConnectionType),
				get:    func(c *Client) any { return string(c.Uplinks[idx].ConnectionType) },
				set: func(c *Client, v any) error {
					k := key(UplinkConnectionType)
					s, err := asString(k, v)
					if err != nil {
						return err
					}
					if !ConnectionType(s).Valid() {
						return &FieldValueError{Key: k, Reason: fmt.Sprintf("unknown connection type %q", s)}
					}
					c.Uplinks[idx].ConnectionType = ConnectionType(s)
					return nil
				},
			},
			str(key(UplinkModemNumber), func(c *Client) *string { return &c.Uplinks[idx].ModemNumber }),
			str(key(UplinkModemICCID), func(c *Client) *string { return &c.Uplinks[idx].ModemICCID }),
			str(key(UplinkProviderSettings), func(c *Client) *string { return &c.Uplinks[idx].ProviderSettings }),
			clientField{
				key:    key(UplinkProviderEquipment),
				submit: key(UplinkProviderEquipment),
				get:    func(c *Client) any { return c.Uplinks[idx].ProviderEquipment },
				set: func(c *Client, v any) error {
					c.Uplinks[idx].ProviderEquipment = Truthy(v)
					return nil
				},
			},
		)
	}

	clientFieldTable = append(clientFieldTable,
		str(FieldSubnet, func(c *Client) *string { return &c.Subnet }),
		str(FieldExternalIP, func(c *Client) *string { return &c.ExternalIP }),
		str(FieldICCID, func(c *Client) *string { return &c.ICCID }),
		str(FieldPharmacyCode, func(c *Client) *string { return &c.PharmacyCode }),
	)

	clientFieldIndex = make(map[string]int, len(clientFieldTable))
	for i, f := range clientFieldTable {
		if _, dup := clientFieldIndex[f.key]; dup {
			panic("domain: duplicate client field " + f.key)
		}
		clientFieldIndex[f.key] = i
	}
}

// ClientFieldKeys returns every client field key in display order.
func ClientFieldKeys() []string {
	keys := make([]string, len(clientFieldTable))
	for i, f := range clientFieldTable {
		keys[i] = f.key
	}
	return keys
}

// FieldValue returns the raw value stored under key. References yield an
// int64 id or nil.
func (c *Client) FieldValue(key string) (any, bool) {
	i, ok := clientFieldIndex[key]
	if !ok {
		return nil, false
	}
	return clientFieldTable[i].get(c), true
}

// ApplyPatch writes the fields present in patch. Reference fields are read from
// their request keys ("provider", "provider2", "ofd_company"); unknown keys are
// ignored. On error the client may be partially updated.
func (c *Client) ApplyPatch(patch map[string]any) error {
	for _, f := range clientFieldTable {
		v, ok := patch[f.submit]
		if !ok {
			continue
		}
		if err := f.set(c, v); err != nil {
			return err
		}
	}
	return nil
}

// Truthy interprets v as a boolean. Strings "true", "1" and "yes" are true
// regardless of case.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		}
		return false
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	return false
}

func asString(key string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	}
	return "", &FieldValueError{Key: key, Reason: fmt.Sprintf("expected text, got %T", v)}
}

// AsID converts a submitted reference to an id. nil, "", and 0 clear the reference.
func AsID(key string, v any) (*int64, error) {
	var id int64
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int64:
		id = t
	case int:
		id = int64(t)
	case float64:
		if t != math.Trunc(t) || t < 0 || t > math.MaxInt64 {
			return nil, &FieldValueError{Key: key, Reason: "expected an integer id"}
		}
		id = int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil, &FieldValueError{Key: key, Reason: "expected an integer id"}
		}
		id = n
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &FieldValueError{Key: key, Reason: "expected an integer id"}
		}
		id = n
	default:
		return nil, &FieldValueError{Key: key, Reason: fmt.Sprintf("expected an id, got %T", v)}
	}
	if id < 0 {
		return nil, &FieldValueError{Key: key, Reason: "id must not be negative"}
	}
	if id == 0 {
		return nil, nil
	}
	return &id, nil
}
