// Package domain provides the portal's entities.
//
// Entities are plain structs. Persistence lives in internal/repository and the
// change-log machinery in internal/changelog reads entities through FieldValue.
//
// Import Path: supportportal.io/portal/internal/domain
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ClientStatus is the service status of a client.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s ClientStatus) Valid() bool {
	return s == ClientStatusActive || s == ClientStatusInactive
}

// ConnectionType is how an uplink reaches the client site.
type ConnectionType string

const (
	ConnectionFiber    ConnectionType = "fiber"
	ConnectionDSL      ConnectionType = "dsl"
	ConnectionCable    ConnectionType = "cable"
	ConnectionWireless ConnectionType = "wireless"
	ConnectionModem    ConnectionType = "modem"
	ConnectionMRNet    ConnectionType = "mrnet"
)

// Valid reports whether t is empty or a known connection type.
func (t ConnectionType) Valid() bool {
	switch t {
	case "", ConnectionFiber, ConnectionDSL, ConnectionCable, ConnectionWireless, ConnectionModem, ConnectionMRNet:
		return true
	}
	return false
}

// Slot numbers of the two uplinks a client can hold.
const (
	SlotPrimary   = 1
	SlotSecondary = 2
)

// ValidSlot reports whether slot addresses an uplink.
func ValidSlot(slot int) bool {
	return slot == SlotPrimary || slot == SlotSecondary
}

// Uplink is one upstream connection of a client site. A client has two
// physical slots for uplinks; transfers move a whole Uplink between slots.
type Uplink struct {
	ProviderID        *int64         `json:"provider_id"`
	PersonalAccount   string         `json:"personal_account"`
	ContractNumber    string         `json:"contract_number"`
	Tariff            string         `json:"tariff"`
	ConnectionType    ConnectionType `json:"connection_type"`
	ModemNumber       string         `json:"modem_number"`
	ModemICCID        string         `json:"modem_iccid"`
	ProviderSettings  string         `json:"provider_settings"`
	ProviderEquipment bool           `json:"provider_equipment"`
}

// IsEmpty reports whether the uplink carries no data.
func (u Uplink) IsEmpty() bool {
	return u == Uplink{}
}

// Client is a serviced site (typically a pharmacy) and its connectivity data.
type Client struct {
	ID int64 `json:"id"`

	LastName     string       `json:"last_name"`
	FirstName    string       `json:"first_name"`
	MiddleName   string       `json:"middle_name"`
	INN          string       `json:"inn"`
	Phone        string       `json:"phone"`
	Email        string       `json:"email"`
	Company      string       `json:"company"`
	Address      string       `json:"address"`
	Status       ClientStatus `json:"status"`
	OFDCompanyID *int64       `json:"ofd_company_id"`
	Subnet       string       `json:"subnet"`
	ExternalIP   string       `json:"external_ip"`
	ICCID        string       `json:"iccid"`
	PharmacyCode string       `json:"pharmacy_code"`

	// Uplinks[0] is slot 1, Uplinks[1] is slot 2.
	Uplinks [2]Uplink `json:"-"`

	IsDraft     bool      `json:"is_draft"`
	CreatedByID *int64    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Uplink returns a pointer to the uplink in slot (1 or 2).
func (c *Client) Uplink(slot int) *Uplink {
	if !ValidSlot(slot) {
		panic(fmt.Sprintf("domain: invalid uplink slot %d", slot))
	}
	return &c.Uplinks[slot-1]
}

// DisplayName is the name shown in lists and activity messages.
func (c *Client) DisplayName() string {
	if c.Company != "" {
		return c.Company
	}
	if c.Address != "" {
		return c.Address
	}
	return fmt.Sprintf("Client #%d", c.ID)
}

// FullName joins the contact person's name parts.
func (c *Client) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.LastName, c.FirstName, c.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// MikrotikIP is host .1 of the client subnet, or "" when the subnet is not an IPv4 network.
func (c *Client) MikrotikIP() string {
	return subnetHost(c.Subnet, "1")
}

// ServerIP is host .2 of the client subnet.
func (c *Client) ServerIP() string {
	return subnetHost(c.Subnet, "2")
}

func subnetHost(subnet, last string) string {
	if subnet == "" {
		return ""
	}
	network, _, _ := strings.Cut(subnet, "/")
	parts := strings.Split(strings.TrimSpace(network), ".")
	if len(parts) != 4 {
		return ""
	}
	parts[3] = last
	return strings.Join(parts, ".")
}

// ClientListFilter narrows client listings.
type ClientListFilter struct {
	Status      ClientStatus
	ProviderID  *int64
	// CreatedByID restricts the list to cards created by one user.
	CreatedByID *int64
	Search      string
	Ordering    string
	Limit       int
	Offset      int
}

// ClientList is a page of clients.
type ClientList struct {
	Items      []*Client `json:"items"`
	TotalCount int       `json:"total_count"`
}
