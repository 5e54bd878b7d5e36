package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"supportportal.io/portal/internal/domain"
)

// GetSettings loads the settings singleton, or the defaults when it was never saved.
func (q *Queries) GetSettings(ctx context.Context) (domain.SystemSettings, error) {
	s := domain.DefaultSystemSettings()
	err := q.db.QueryRow(ctx, `SELECT ssh_user, ssh_password_sealed, smtp_host, smtp_port, smtp_user,
		smtp_password_sealed, smtp_from, smtp_use_ssl, smtp_use_tls, updated_at
		FROM system_settings WHERE id = 1`).
		Scan(&s.SSHUser, &s.SSHPasswordSealed, &s.SMTPHost, &s.SMTPPort, &s.SMTPUser,
			&s.SMTPPasswordSealed, &s.SMTPFrom, &s.SMTPUseSSL, &s.SMTPUseTLS, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSystemSettings(), nil
	}
	if err != nil {
		return s, mapErr(err, "get settings")
	}
	return s, nil
}

// SaveSettings writes the settings singleton.
func (q *Queries) SaveSettings(ctx context.Context, s *domain.SystemSettings) error {
	err := q.db.QueryRow(ctx, `INSERT INTO system_settings (id, ssh_user, ssh_password_sealed, smtp_host, smtp_port,
		smtp_user, smtp_password_sealed, smtp_from, smtp_use_ssl, smtp_use_tls, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET ssh_user = EXCLUDED.ssh_user, ssh_password_sealed = EXCLUDED.ssh_password_sealed,
			smtp_host = EXCLUDED.smtp_host, smtp_port = EXCLUDED.smtp_port, smtp_user = EXCLUDED.smtp_user,
			smtp_password_sealed = EXCLUDED.smtp_password_sealed, smtp_from = EXCLUDED.smtp_from,
			smtp_use_ssl = EXCLUDED.smtp_use_ssl, smtp_use_tls = EXCLUDED.smtp_use_tls, updated_at = now()
		RETURNING updated_at`,
		s.SSHUser, s.SSHPasswordSealed, s.SMTPHost, s.SMTPPort, s.SMTPUser,
		s.SMTPPasswordSealed, s.SMTPFrom, s.SMTPUseSSL, s.SMTPUseTLS,
	).Scan(&s.UpdatedAt)
	return mapErr(err, "save settings")
}
