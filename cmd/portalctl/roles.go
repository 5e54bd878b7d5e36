package main

import (
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/repository"
)

//go:embed roles.yaml
var builtInRolesYAML []byte

// builtInRoles parses the embedded role catalogue.
func builtInRoles() ([]*domain.Role, error) {
	var roles []*domain.Role
	if err := yaml.Unmarshal(builtInRolesYAML, &roles); err != nil {
		return nil, fmt.Errorf("parse built-in roles: %w", err)
	}
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		if r.Name == "" {
			return nil, fmt.Errorf("built-in role without name")
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate built-in role %q", r.Name)
		}
		seen[r.Name] = true
	}
	return roles, nil
}

func newSeedRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-roles",
		Short: "Create or refresh the built-in roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			roles, err := builtInRoles()
			if err != nil {
				return err
			}
			return withQueries(cmd.Context(), cfg, func(q *repository.Queries) error {
				for _, r := range roles {
					if err := q.UpsertRoleByName(cmd.Context(), r); err != nil {
						return err
					}
					logger.Info("Seeded built-in role", zap.String("role", r.Name), zap.Int64("id", r.ID))
				}
				return nil
			})
		},
	}
}
