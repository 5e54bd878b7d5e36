package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"supportportal.io/portal/internal/domain"
)

const customFieldColumns = `id, name, field_type, options, is_required, sort_order, is_active`

func scanCustomField(row pgx.Row) (*domain.CustomFieldDefinition, error) {
	var d domain.CustomFieldDefinition
	var kind string
	var options []byte
	if err := row.Scan(&d.ID, &d.Name, &kind, &options, &d.IsRequired, &d.Order, &d.IsActive); err != nil {
		return nil, err
	}
	d.FieldType = domain.CustomFieldType(kind)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &d.Options); err != nil {
			return nil, fmt.Errorf("decode options of field %d: %w", d.ID, err)
		}
	}
	if d.Options == nil {
		d.Options = []string{}
	}
	return &d, nil
}

// ListCustomFields returns definitions in display order. activeOnly hides retired fields.
func (q *Queries) ListCustomFields(ctx context.Context, activeOnly bool) ([]*domain.CustomFieldDefinition, error) {
	sql := `SELECT ` + customFieldColumns + ` FROM custom_field_definitions`
	if activeOnly {
		sql += ` WHERE is_active`
	}
	rows, err := q.db.Query(ctx, sql+` ORDER BY sort_order, name, id`)
	if err != nil {
		return nil, mapErr(err, "list custom fields")
	}
	defer rows.Close()

	var out []*domain.CustomFieldDefinition
	for rows.Next() {
		d, err := scanCustomField(rows)
		if err != nil {
			return nil, mapErr(err, "scan custom field")
		}
		out = append(out, d)
	}
	return out, mapErr(rows.Err(), "list custom fields")
}

// ActiveCustomFields is ListCustomFields(ctx, true).
func (q *Queries) ActiveCustomFields(ctx context.Context) ([]*domain.CustomFieldDefinition, error) {
	return q.ListCustomFields(ctx, true)
}

// GetCustomField loads one definition.
func (q *Queries) GetCustomField(ctx context.Context, id int64) (*domain.CustomFieldDefinition, error) {
	d, err := scanCustomField(q.db.QueryRow(ctx, `SELECT `+customFieldColumns+` FROM custom_field_definitions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get custom field %d", id))
	}
	return d, nil
}

// InsertCustomField stores a definition.
func (q *Queries) InsertCustomField(ctx context.Context, d *domain.CustomFieldDefinition) error {
	options, err := json.Marshal(nonNil(d.Options))
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	err = q.db.QueryRow(ctx,
		`INSERT INTO custom_field_definitions (name, field_type, options, is_required, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		d.Name, string(d.FieldType), options, d.IsRequired, d.Order, d.IsActive,
	).Scan(&d.ID)
	return mapErr(err, "insert custom field")
}

// UpdateCustomField overwrites a definition.
func (q *Queries) UpdateCustomField(ctx context.Context, d *domain.CustomFieldDefinition) error {
	options, err := json.Marshal(nonNil(d.Options))
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE custom_field_definitions
		SET name = $1, field_type = $2, options = $3, is_required = $4, sort_order = $5, is_active = $6
		WHERE id = $7`,
		d.Name, string(d.FieldType), options, d.IsRequired, d.Order, d.IsActive, d.ID)
	return expectOne(tag, err, fmt.Sprintf("update custom field %d", d.ID))
}

// DeleteCustomField removes a definition and every value of it.
func (q *Queries) DeleteCustomField(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM custom_field_definitions WHERE id = $1`, id)
	return expectOne(tag, err, fmt.Sprintf("delete custom field %d", id))
}

// CustomFieldValues returns a client's values keyed by field id.
func (q *Queries) CustomFieldValues(ctx context.Context, clientID int64) (map[int64]string, error) {
	rows, err := q.db.Query(ctx, `SELECT field_id, value FROM custom_field_values WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, mapErr(err, "load custom values")
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var v string
		if err := rows.Scan(&id, &v); err != nil {
			return nil, mapErr(err, "scan custom value")
		}
		out[id] = v
	}
	return out, mapErr(rows.Err(), "load custom values")
}

// CustomFieldValuesFor loads values of many clients keyed by client then field.
// Empty ids loads every client.
func (q *Queries) CustomFieldValuesFor(ctx context.Context, ids []int64) (map[int64]map[int64]string, error) {
	sql := `SELECT client_id, field_id, value FROM custom_field_values`
	var args []any
	if len(ids) > 0 {
		sql += ` WHERE client_id = ANY($1)`
		args = append(args, ids)
	}
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "load custom values")
	}
	defer rows.Close()

	out := make(map[int64]map[int64]string)
	for rows.Next() {
		var clientID, fieldID int64
		var v string
		if err := rows.Scan(&clientID, &fieldID, &v); err != nil {
			return nil, mapErr(err, "scan custom value")
		}
		if out[clientID] == nil {
			out[clientID] = make(map[int64]string)
		}
		out[clientID][fieldID] = v
	}
	return out, mapErr(rows.Err(), "load custom values")
}

// ListCustomFieldValues returns a client's values with field names, in display order.
func (q *Queries) ListCustomFieldValues(ctx context.Context, clientID int64) ([]domain.CustomFieldValue, error) {
	rows, err := q.db.Query(ctx, `SELECT d.id, d.name, v.value
		FROM custom_field_values v JOIN custom_field_definitions d ON d.id = v.field_id
		WHERE v.client_id = $1 ORDER BY d.sort_order, d.name, d.id`, clientID)
	if err != nil {
		return nil, mapErr(err, "list custom values")
	}
	defer rows.Close()

	out := []domain.CustomFieldValue{}
	for rows.Next() {
		var v domain.CustomFieldValue
		if err := rows.Scan(&v.FieldID, &v.FieldName, &v.Value); err != nil {
			return nil, mapErr(err, "scan custom value")
		}
		out = append(out, v)
	}
	return out, mapErr(rows.Err(), "list custom values")
}

// SaveCustomFieldValues upserts values; an empty value deletes the row.
func (q *Queries) SaveCustomFieldValues(ctx context.Context, clientID int64, values map[int64]string) error {
	for fieldID, v := range values {
		var err error
		if v == "" {
			_, err = q.db.Exec(ctx, `DELETE FROM custom_field_values WHERE client_id = $1 AND field_id = $2`, clientID, fieldID)
		} else {
			_, err = q.db.Exec(ctx, `INSERT INTO custom_field_values (client_id, field_id, value) VALUES ($1, $2, $3)
				ON CONFLICT (client_id, field_id) DO UPDATE SET value = EXCLUDED.value`, clientID, fieldID, v)
		}
		if err != nil {
			return mapErr(err, fmt.Sprintf("save custom value %d of client %d", fieldID, clientID))
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
