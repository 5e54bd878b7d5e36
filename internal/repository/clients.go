package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"supportportal.io/portal/internal/domain"
)

const clientColumns = `id, last_name, first_name, middle_name, inn, phone, email, company, address,
	status, ofd_company_id, subnet, external_ip, iccid, pharmacy_code,
	provider_id, personal_account, contract_number, tariff, connection_type,
	modem_number, modem_iccid, provider_settings, provider_equipment,
	provider2_id, personal_account2, contract_number2, tariff2, connection_type2,
	modem_number2, modem_iccid2, provider_settings2, provider_equipment2,
	is_draft, created_by_id, created_at, updated_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	var status string
	var conn [2]string
	dest := []any{
		&c.ID, &c.LastName, &c.FirstName, &c.MiddleName, &c.INN, &c.Phone, &c.Email, &c.Company, &c.Address,
		&status, &c.OFDCompanyID, &c.Subnet, &c.ExternalIP, &c.ICCID, &c.PharmacyCode,
	}
	for i := range c.Uplinks {
		u := &c.Uplinks[i]
		dest = append(dest,
			&u.ProviderID, &u.PersonalAccount, &u.ContractNumber, &u.Tariff, &conn[i],
			&u.ModemNumber, &u.ModemICCID, &u.ProviderSettings, &u.ProviderEquipment,
		)
	}
	dest = append(dest, &c.IsDraft, &c.CreatedByID, &c.CreatedAt, &c.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Status = domain.ClientStatus(status)
	for i := range conn {
		c.Uplinks[i].ConnectionType = domain.ConnectionType(conn[i])
	}
	return &c, nil
}

// clientArgs returns the writable columns' values in clientColumns order,
// without id and timestamps.
func clientArgs(c *domain.Client) []any {
	args := []any{
		c.LastName, c.FirstName, c.MiddleName, c.INN, c.Phone, c.Email, c.Company, c.Address,
		string(c.Status), c.OFDCompanyID, c.Subnet, c.ExternalIP, c.ICCID, c.PharmacyCode,
	}
	for _, u := range c.Uplinks {
		args = append(args,
			u.ProviderID, u.PersonalAccount, u.ContractNumber, u.Tariff, string(u.ConnectionType),
			u.ModemNumber, u.ModemICCID, u.ProviderSettings, u.ProviderEquipment,
		)
	}
	return append(args, c.IsDraft, c.CreatedByID)
}

// writableClientColumns matches clientArgs.
var writableClientColumns = []string{
	"last_name", "first_name", "middle_name", "inn", "phone", "email", "company", "address",
	"status", "ofd_company_id", "subnet", "external_ip", "iccid", "pharmacy_code",
	"provider_id", "personal_account", "contract_number", "tariff", "connection_type",
	"modem_number", "modem_iccid", "provider_settings", "provider_equipment",
	"provider2_id", "personal_account2", "contract_number2", "tariff2", "connection_type2",
	"modem_number2", "modem_iccid2", "provider_settings2", "provider_equipment2",
	"is_draft", "created_by_id",
}

// GetClient loads one client, drafts included.
func (q *Queries) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := scanClient(q.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get client %d", id))
	}
	return c, nil
}

// GetClientForUpdate loads one client and locks its row until the transaction ends.
func (q *Queries) GetClientForUpdate(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := scanClient(q.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("lock client %d", id))
	}
	return c, nil
}

// InsertClient stores a new client and fills its id and timestamps.
func (q *Queries) InsertClient(ctx context.Context, c *domain.Client) error {
	placeholders := make([]string, len(writableClientColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := `INSERT INTO clients (` + strings.Join(writableClientColumns, ", ") + `)
		VALUES (` + strings.Join(placeholders, ", ") + `)
		RETURNING id, created_at, updated_at`
	err := q.db.QueryRow(ctx, sql, clientArgs(c)...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapErr(err, "insert client")
}

// UpdateClient overwrites every writable column of c.
func (q *Queries) UpdateClient(ctx context.Context, c *domain.Client) error {
	sets := make([]string, len(writableClientColumns))
	for i, col := range writableClientColumns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args := append(clientArgs(c), c.ID)
	sql := `UPDATE clients SET ` + strings.Join(sets, ", ") + `, updated_at = now()
		WHERE id = $` + fmt.Sprint(len(args)) + ` RETURNING updated_at`
	err := q.db.QueryRow(ctx, sql, args...).Scan(&c.UpdatedAt)
	return mapErr(err, fmt.Sprintf("update client %d", c.ID))
}

// DeleteClient removes a client; notes, activities, files and KKT rows cascade.
func (q *Queries) DeleteClient(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	return expectOne(tag, err, fmt.Sprintf("delete client %d", id))
}

// ClientExists reports whether a client row exists.
func (q *Queries) ClientExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, id).Scan(&ok)
	return ok, mapErr(err, "client exists")
}

// clientOrderings whitelists list ordering parameters.
var clientOrderings = map[string]string{
	"created_at":  "created_at",
	"-created_at": "created_at DESC",
	"company":     "company",
	"-company":    "company DESC",
	"last_name":   "last_name",
	"-last_name":  "last_name DESC",
	"status":      "status",
	"-status":     "status DESC",
}

// ClientOrderingValid reports whether ordering is accepted by ListClients.
func ClientOrderingValid(ordering string) bool {
	if ordering == "" {
		return true
	}
	_, ok := clientOrderings[ordering]
	return ok
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// ListClients returns one page of non-draft clients.
func (q *Queries) ListClients(ctx context.Context, f domain.ClientListFilter) (*domain.ClientList, error) {
	where := []string{"NOT is_draft"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.ProviderID != nil {
		p := arg(*f.ProviderID)
		where = append(where, fmt.Sprintf("(provider_id = %s OR provider2_id = %s)", p, p))
	}
	if f.CreatedByID != nil {
		where = append(where, "created_by_id = "+arg(*f.CreatedByID))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg(containsPattern(s))
		cols := []string{"last_name", "first_name", "middle_name", "phone", "email", "company", "inn", "address", "pharmacy_code"}
		ors := make([]string, len(cols))
		for i, col := range cols {
			ors[i] = col + " ILIKE " + p + ` ESCAPE '\'`
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM clients WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, mapErr(err, "count clients")
	}

	order := clientOrderings["-created_at"]
	if o, ok := clientOrderings[f.Ordering]; ok {
		order = o
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	sql := `SELECT ` + clientColumns + ` FROM clients WHERE ` + cond +
		` ORDER BY ` + order + `, id DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(max(f.Offset, 0))

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "list clients")
	}
	defer rows.Close()

	items := make([]*domain.Client, 0, limit)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, mapErr(err, "scan client")
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list clients")
	}
	return &domain.ClientList{Items: items, TotalCount: total}, nil
}

// ListClientsByIDs loads the given clients for export, in id order. Drafts are skipped.
func (q *Queries) ListClientsByIDs(ctx context.Context, ids []int64) ([]*domain.Client, error) {
	sql := `SELECT ` + clientColumns + ` FROM clients WHERE NOT is_draft`
	var args []any
	if len(ids) > 0 {
		sql += ` AND id = ANY($1)`
		args = append(args, ids)
	}
	rows, err := q.db.Query(ctx, sql+` ORDER BY id`, args...)
	if err != nil {
		return nil, mapErr(err, "list clients by id")
	}
	defer rows.Close()

	var out []*domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, mapErr(err, "scan client")
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err(), "list clients by id")
}
