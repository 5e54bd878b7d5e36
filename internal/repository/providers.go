package repository

import (
	"context"
	"fmt"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
)

// ListProviders returns all providers ordered by name.
func (q *Queries) ListProviders(ctx context.Context) ([]*domain.Provider, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, support_phones, created_at, updated_at FROM providers ORDER BY name, id`)
	if err != nil {
		return nil, mapErr(err, "list providers")
	}
	defer rows.Close()

	var out []*domain.Provider
	for rows.Next() {
		var p domain.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.SupportPhones, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, mapErr(err, "scan provider")
		}
		out = append(out, &p)
	}
	return out, mapErr(rows.Err(), "list providers")
}

// GetProvider loads one provider.
func (q *Queries) GetProvider(ctx context.Context, id int64) (*domain.Provider, error) {
	var p domain.Provider
	err := q.db.QueryRow(ctx, `SELECT id, name, support_phones, created_at, updated_at FROM providers WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.SupportPhones, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get provider %d", id))
	}
	return &p, nil
}

// InsertProvider stores a provider.
func (q *Queries) InsertProvider(ctx context.Context, p *domain.Provider) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO providers (name, support_phones) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		p.Name, p.SupportPhones,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err, "insert provider")
}

// UpdateProvider overwrites a provider.
func (q *Queries) UpdateProvider(ctx context.Context, p *domain.Provider) error {
	err := q.db.QueryRow(ctx,
		`UPDATE providers SET name = $1, support_phones = $2, updated_at = now() WHERE id = $3 RETURNING updated_at`,
		p.Name, p.SupportPhones, p.ID,
	).Scan(&p.UpdatedAt)
	return mapErr(err, fmt.Sprintf("update provider %d", p.ID))
}

// DeleteProvider removes a provider; client references are set to NULL.
func (q *Queries) DeleteProvider(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	return expectOne(tag, err, fmt.Sprintf("delete provider %d", id))
}

// RefNames loads the id->name maps used to render client references.
func (q *Queries) RefNames(ctx context.Context) (changelog.RefNames, error) {
	refs := changelog.RefNames{}
	for set, sql := range map[string]string{
		changelog.RefProviders:    `SELECT id, name FROM providers`,
		changelog.RefOFDCompanies: `SELECT id, name FROM ofd_companies`,
	} {
		names, err := q.idNames(ctx, sql)
		if err != nil {
			return nil, mapErr(err, "load "+set)
		}
		refs[set] = names
	}
	return refs, nil
}

func (q *Queries) idNames(ctx context.Context, sql string) (map[int64]string, error) {
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}
