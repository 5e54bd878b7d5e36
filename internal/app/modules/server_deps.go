package modules

import (
	"supportportal.io/portal/internal/api/handlers"
	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Pool:           infra.Pool,
		Queries:        infra.Queries,
		JWTCfg:         middleware.JWTConfigFromSecurity(cfg.Security),
		Audit:          infra.AuditLogger,
		Box:            infra.Box,
		Files:          infra.Media,
		Pools:          infra.Pools,
		MinPasswordLen: cfg.Security.MinPasswordLen,
	}
	if infra.RiverClient != nil {
		deps.Jobs = infra.RiverClient
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
