package changelog

import (
	"supportportal.io/portal/internal/domain"
)

// Ref sets used by client references.
const (
	RefProviders    = "providers"
	RefOFDCompanies = "ofd_companies"
)

// StatusLabels renders client statuses.
var StatusLabels = map[string]string{
	string(domain.ClientStatusActive):   "Active",
	string(domain.ClientStatusInactive): "Inactive",
}

// ConnectionTypeLabels renders uplink connection types.
var ConnectionTypeLabels = map[string]string{
	string(domain.ConnectionFiber):    "Fiber optic",
	string(domain.ConnectionDSL):      "DSL",
	string(domain.ConnectionCable):    "Cable",
	string(domain.ConnectionWireless): "Wireless",
	string(domain.ConnectionModem):    "Modem",
	string(domain.ConnectionMRNet):    "MR-Net",
}

const providerSettingsTruncateAt = 50

// uplinkLabels holds the slot-1 label of each uplink member.
var uplinkLabels = [...]string{
	domain.UplinkProvider:          "Provider",
	domain.UplinkPersonalAccount:   "Personal account",
	domain.UplinkContractNumber:    "Contract number",
	domain.UplinkTariff:            "Tariff",
	domain.UplinkConnectionType:    "Connection type",
	domain.UplinkModemNumber:       "Modem/SIM number",
	domain.UplinkModemICCID:        "Modem ICCID",
	domain.UplinkProviderSettings:  "Provider settings",
	domain.UplinkProviderEquipment: "Provider equipment",
}

var uplinkSubmitKeys = [...]string{"provider", "provider2"}

func uplinkSpec(slot int, f domain.UplinkField) FieldSpec {
	label := uplinkLabels[f]
	if slot == domain.SlotSecondary {
		label += " 2"
	}
	s := FieldSpec{Key: domain.UplinkKey(slot, f), Label: label, Kind: KindPlain}
	switch f {
	case domain.UplinkProvider:
		s.Kind = KindReference
		s.RefSet = RefProviders
		s.SubmitKey = uplinkSubmitKeys[slot-1]
	case domain.UplinkConnectionType:
		s.Kind = KindEnum
		s.EnumLabels = ConnectionTypeLabels
	case domain.UplinkProviderSettings:
		s.Kind = KindTruncated
		s.TruncateAt = providerSettingsTruncateAt
	case domain.UplinkProviderEquipment:
		s.Kind = KindBoolean
	}
	return s
}

func clientSpecs() []FieldSpec {
	specs := []FieldSpec{
		{Key: domain.FieldLastName, Label: "Last name", Kind: KindPlain},
		{Key: domain.FieldFirstName, Label: "First name", Kind: KindPlain},
		{Key: domain.FieldMiddleName, Label: "Middle name", Kind: KindPlain},
		{Key: domain.FieldINN, Label: "INN", Kind: KindPlain},
		{Key: domain.FieldPhone, Label: "Phone", Kind: KindPlain},
		{Key: domain.FieldEmail, Label: "Email", Kind: KindPlain},
		{Key: domain.FieldCompany, Label: "Company", Kind: KindPlain},
		{Key: domain.FieldAddress, Label: "Address", Kind: KindPlain},
		{Key: domain.FieldStatus, Label: "Status", Kind: KindEnum, EnumLabels: StatusLabels},
		{Key: domain.FieldOFDCompanyID, Label: "OFD company", Kind: KindReference, RefSet: RefOFDCompanies, SubmitKey: "ofd_company"},
	}
	for slot := domain.SlotPrimary; slot <= domain.SlotSecondary; slot++ {
		for _, f := range domain.UplinkFields {
			specs = append(specs, uplinkSpec(slot, f))
		}
	}
	return append(specs,
		FieldSpec{Key: domain.FieldSubnet, Label: "Pharmacy subnet", Kind: KindPlain},
		FieldSpec{Key: domain.FieldExternalIP, Label: "External IP", Kind: KindPlain},
		FieldSpec{Key: domain.FieldICCID, Label: "ICCID", Kind: KindPlain},
		FieldSpec{Key: domain.FieldPharmacyCode, Label: "Pharmacy code", Kind: KindPlain},
	)
}

// ClientFields is the registry of every logged client field. Change logs,
// exports and transfer summaries all render through it.
var ClientFields = MustRegistry(clientSpecs()...)

const customTextTruncateAt = 100

// CustomFieldSpecs builds specs for active custom field definitions, keyed by
// domain.CustomFieldKey.
func CustomFieldSpecs(defs []*domain.CustomFieldDefinition) []FieldSpec {
	out := make([]FieldSpec, 0, len(defs))
	for _, d := range defs {
		if !d.IsActive {
			continue
		}
		s := FieldSpec{Key: domain.CustomFieldKey(d.ID), Label: d.Name, Kind: KindPlain}
		if d.FieldType == domain.CustomFieldText {
			s.Kind = KindTruncated
			s.TruncateAt = customTextTruncateAt
		}
		out = append(out, s)
	}
	return out
}
