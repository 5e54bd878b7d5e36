package domain

import (
	"encoding/json"
	"time"
)

// Provider is an internet service provider that uplinks are bought from.
type Provider struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	SupportPhones string    `json:"support_phones"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CustomFieldType is the input kind of a custom field.
type CustomFieldType string

const (
	CustomFieldText   CustomFieldType = "text"
	CustomFieldSelect CustomFieldType = "select"
)

// CustomFieldDefinition is an operator-defined extra attribute of clients.
type CustomFieldDefinition struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	FieldType  CustomFieldType `json:"field_type"`
	Options    []string        `json:"options"`
	IsRequired bool            `json:"is_required"`
	Order      int             `json:"order"`
	IsActive   bool            `json:"is_active"`
}

// CustomFieldKey is the change-log key of a custom field definition.
func CustomFieldKey(id int64) string {
	return "custom_" + itoa(id)
}

// CustomFieldValue is one client's value for a custom field.
type CustomFieldValue struct {
	FieldID   int64  `json:"field_id"`
	FieldName string `json:"field_name"`
	Value     string `json:"value"`
}

// OFDCompany is a legal entity with a fiscal data operator account. The
// token is stored sealed and never leaves the server.
type OFDCompany struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	INN         string    `json:"inn"`
	SealedToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasToken reports whether an OFD token is configured.
func (o *OFDCompany) HasToken() bool {
	return o.SealedToken != ""
}

// KKTData is the fiscal register state fetched from the OFD for one
// registration number.
type KKTData struct {
	ID                int64           `json:"id"`
	ClientID          int64           `json:"client_id"`
	RegID             string          `json:"kkt_reg_id"`
	SerialNumber      string          `json:"serial_number"`
	FNNumber          string          `json:"fn_number"`
	Model             string          `json:"kkt_model"`
	CreateDate        *time.Time      `json:"create_date"`
	CheckDate         *time.Time      `json:"check_date"`
	ActivationDate    *time.Time      `json:"activation_date"`
	FirstDocumentDate *time.Time      `json:"first_document_date"`
	ContractStartDate *time.Time      `json:"contract_start_date"`
	ContractEndDate   *time.Time      `json:"contract_end_date"`
	FNEndDate         *time.Time      `json:"fn_end_date"`
	LastDocOnKKT      *time.Time      `json:"last_doc_on_kkt"`
	LastDocOnOFD      *time.Time      `json:"last_doc_on_ofd"`
	FiscalAddress     string          `json:"fiscal_address"`
	RawData           json.RawMessage `json:"raw_data"`
	FetchedAt         time.Time       `json:"fetched_at"`
}
