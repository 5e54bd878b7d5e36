package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"supportportal.io/portal/internal/api/handlers"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/repository"
)

// adminRoleName is the built-in role given to administrators created here.
const adminRoleName = "admin"

// passwordReader reads a password without echo. Swapped in tests.
var passwordReader = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

type createAdminOptions struct {
	email     string
	firstName string
	lastName  string
	password  string
}

func newCreateAdminCmd() *cobra.Command {
	var opts createAdminOptions
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a superuser with the admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			password, err := resolvePassword(opts.password, cfg.Security.MinPasswordLen)
			if err != nil {
				return err
			}
			opts.password = password
			return withQueries(cmd.Context(), cfg, func(q *repository.Queries) error {
				return createAdmin(cmd.Context(), q, opts, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "administrator email (login)")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&opts.password, "password", "", "password; prompted when empty")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// resolvePassword returns the flag value or prompts twice for a new password.
func resolvePassword(flagValue string, minLen int) (string, error) {
	if minLen <= 0 {
		minLen = 6
	}
	password := flagValue
	if password == "" {
		first, err := passwordReader("Password: ")
		if err != nil {
			return "", err
		}
		confirm, err := passwordReader("Confirm password: ")
		if err != nil {
			return "", err
		}
		if first != confirm {
			return "", errors.New("passwords do not match")
		}
		password = first
	}
	if len([]rune(password)) < minLen {
		return "", fmt.Errorf("password must be at least %d characters", minLen)
	}
	return password, nil
}

// adminStore is the part of the repository create-admin needs.
type adminStore interface {
	UpsertRoleByName(ctx context.Context, r *domain.Role) error
	InsertUser(ctx context.Context, u *domain.User) error
}

func createAdmin(ctx context.Context, store adminStore, opts createAdminOptions, out io.Writer) error {
	email := strings.ToLower(strings.TrimSpace(opts.email))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", opts.email)
	}

	roles, err := builtInRoles()
	if err != nil {
		return err
	}
	var role *domain.Role
	for _, r := range roles {
		if r.Name == adminRoleName {
			role = r
		}
	}
	if role == nil {
		return fmt.Errorf("built-in role %q is missing", adminRoleName)
	}
	if err := store.UpsertRoleByName(ctx, role); err != nil {
		return fmt.Errorf("ensure admin role: %w", err)
	}

	hash, err := handlers.HashPassword(opts.password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Email:        email,
		FirstName:    strings.TrimSpace(opts.firstName),
		LastName:     strings.TrimSpace(opts.lastName),
		PasswordHash: hash,
		RoleID:       &role.ID,
		IsActive:     true,
		IsSuperuser:  true,
	}
	if err := store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return fmt.Errorf("user %s already exists", email)
		}
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("Created administrator", zap.String("email", email), zap.Int64("id", user.ID))
	fmt.Fprintf(out, "created administrator %s (id %d)\n", email, user.ID)
	return nil
}
