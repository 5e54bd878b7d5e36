package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"supportportal.io/portal/internal/domain"
)

const ofdCompanyColumns = `id, name, inn, sealed_token, created_at, updated_at`

func scanOFDCompany(row pgx.Row) (*domain.OFDCompany, error) {
	var o domain.OFDCompany
	if err := row.Scan(&o.ID, &o.Name, &o.INN, &o.SealedToken, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOFDCompanies returns all OFD companies ordered by name.
func (q *Queries) ListOFDCompanies(ctx context.Context) ([]*domain.OFDCompany, error) {
	rows, err := q.db.Query(ctx, `SELECT `+ofdCompanyColumns+` FROM ofd_companies ORDER BY name, id`)
	if err != nil {
		return nil, mapErr(err, "list ofd companies")
	}
	defer rows.Close()

	var out []*domain.OFDCompany
	for rows.Next() {
		o, err := scanOFDCompany(rows)
		if err != nil {
			return nil, mapErr(err, "scan ofd company")
		}
		out = append(out, o)
	}
	return out, mapErr(rows.Err(), "list ofd companies")
}

// GetOFDCompany loads one OFD company.
func (q *Queries) GetOFDCompany(ctx context.Context, id int64) (*domain.OFDCompany, error) {
	o, err := scanOFDCompany(q.db.QueryRow(ctx, `SELECT `+ofdCompanyColumns+` FROM ofd_companies WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get ofd company %d", id))
	}
	return o, nil
}

// InsertOFDCompany stores an OFD company.
func (q *Queries) InsertOFDCompany(ctx context.Context, o *domain.OFDCompany) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO ofd_companies (name, inn, sealed_token) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`,
		o.Name, o.INN, o.SealedToken,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	return mapErr(err, "insert ofd company")
}

// UpdateOFDCompany overwrites an OFD company, token included.
func (q *Queries) UpdateOFDCompany(ctx context.Context, o *domain.OFDCompany) error {
	err := q.db.QueryRow(ctx,
		`UPDATE ofd_companies SET name = $1, inn = $2, sealed_token = $3, updated_at = now() WHERE id = $4 RETURNING updated_at`,
		o.Name, o.INN, o.SealedToken, o.ID,
	).Scan(&o.UpdatedAt)
	return mapErr(err, fmt.Sprintf("update ofd company %d", o.ID))
}

// DeleteOFDCompany removes an OFD company.
func (q *Queries) DeleteOFDCompany(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM ofd_companies WHERE id = $1`, id)
	return expectOne(tag, err, fmt.Sprintf("delete ofd company %d", id))
}

const kktColumns = `id, client_id, kkt_reg_id, serial_number, fn_number, kkt_model,
	create_date, check_date, activation_date, first_document_date,
	contract_start_date, contract_end_date, fn_end_date, last_doc_on_kkt, last_doc_on_ofd,
	fiscal_address, raw_data, fetched_at`

func scanKKT(row pgx.Row) (*domain.KKTData, error) {
	var k domain.KKTData
	var raw []byte
	err := row.Scan(&k.ID, &k.ClientID, &k.RegID, &k.SerialNumber, &k.FNNumber, &k.Model,
		&k.CreateDate, &k.CheckDate, &k.ActivationDate, &k.FirstDocumentDate,
		&k.ContractStartDate, &k.ContractEndDate, &k.FNEndDate, &k.LastDocOnKKT, &k.LastDocOnOFD,
		&k.FiscalAddress, &raw, &k.FetchedAt)
	if err != nil {
		return nil, err
	}
	k.RawData = raw
	return &k, nil
}

func (q *Queries) listKKT(ctx context.Context, where string, args ...any) ([]*domain.KKTData, error) {
	rows, err := q.db.Query(ctx, `SELECT `+kktColumns+` FROM kkt_data`+where+` ORDER BY client_id, kkt_reg_id`, args...)
	if err != nil {
		return nil, mapErr(err, "list kkt")
	}
	defer rows.Close()

	var out []*domain.KKTData
	for rows.Next() {
		k, err := scanKKT(rows)
		if err != nil {
			return nil, mapErr(err, "scan kkt")
		}
		out = append(out, k)
	}
	return out, mapErr(rows.Err(), "list kkt")
}

// ListKKT returns a client's KKT rows.
func (q *Queries) ListKKT(ctx context.Context, clientID int64) ([]*domain.KKTData, error) {
	return q.listKKT(ctx, ` WHERE client_id = $1`, clientID)
}

// ListAllKKT returns every stored KKT row, for the periodic refresh.
func (q *Queries) ListAllKKT(ctx context.Context) ([]*domain.KKTData, error) {
	return q.listKKT(ctx, "")
}

// UpsertKKT stores fetched KKT data keyed by (client, registration number).
func (q *Queries) UpsertKKT(ctx context.Context, k *domain.KKTData) error {
	raw := []byte(k.RawData)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	err := q.db.QueryRow(ctx, `INSERT INTO kkt_data (client_id, kkt_reg_id, serial_number, fn_number, kkt_model,
		create_date, check_date, activation_date, first_document_date,
		contract_start_date, contract_end_date, fn_end_date, last_doc_on_kkt, last_doc_on_ofd,
		fiscal_address, raw_data, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		ON CONFLICT (client_id, kkt_reg_id) DO UPDATE SET
			serial_number = EXCLUDED.serial_number, fn_number = EXCLUDED.fn_number, kkt_model = EXCLUDED.kkt_model,
			create_date = EXCLUDED.create_date, check_date = EXCLUDED.check_date,
			activation_date = EXCLUDED.activation_date, first_document_date = EXCLUDED.first_document_date,
			contract_start_date = EXCLUDED.contract_start_date, contract_end_date = EXCLUDED.contract_end_date,
			fn_end_date = EXCLUDED.fn_end_date, last_doc_on_kkt = EXCLUDED.last_doc_on_kkt,
			last_doc_on_ofd = EXCLUDED.last_doc_on_ofd, fiscal_address = EXCLUDED.fiscal_address,
			raw_data = EXCLUDED.raw_data, fetched_at = now()
		RETURNING id, fetched_at`,
		k.ClientID, k.RegID, k.SerialNumber, k.FNNumber, k.Model,
		k.CreateDate, k.CheckDate, k.ActivationDate, k.FirstDocumentDate,
		k.ContractStartDate, k.ContractEndDate, k.FNEndDate, k.LastDocOnKKT, k.LastDocOnOFD,
		k.FiscalAddress, raw,
	).Scan(&k.ID, &k.FetchedAt)
	return mapErr(err, fmt.Sprintf("upsert kkt %s", k.RegID))
}

// DeleteKKTExcept drops a client's KKT rows whose registration number is not in keep.
func (q *Queries) DeleteKKTExcept(ctx context.Context, clientID int64, keep []string) error {
	if keep == nil {
		keep = []string{}
	}
	_, err := q.db.Exec(ctx, `DELETE FROM kkt_data WHERE client_id = $1 AND NOT (kkt_reg_id = ANY($2))`, clientID, keep)
	return mapErr(err, "prune kkt")
}
