// Package app is the composition root: it builds infrastructure, modules,
// background workers and the HTTP router. It holds no business logic.
//
// Import Path: supportportal.io/portal/internal/app
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"supportportal.io/portal/internal/api/handlers"
	"supportportal.io/portal/internal/app/modules"
	"supportportal.io/portal/internal/config"
	"supportportal.io/portal/internal/infrastructure"
	"supportportal.io/portal/internal/pkg/worker"
)

// Application is the assembled portal: HTTP router plus the resources
// Shutdown must release.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module
}

// Bootstrap connects to Postgres, builds the feature modules, registers
// their River workers and mounts the API. Nothing is started; call Start.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	mods, err := buildModules(infra)
	if err != nil {
		infra.Close()
		return nil, err
	}

	workers := river.NewWorkers()
	for _, m := range mods {
		m.RegisterWorkers(workers)
	}
	if err := infra.InitRiver(workers); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	deps := modules.NewServerDeps(cfg, infra, mods)
	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, handlers.NewServer(deps), deps.JWTCfg),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: mods,
	}, nil
}

func buildModules(infra *modules.Infrastructure) ([]modules.Module, error) {
	integration, err := modules.NewIntegrationModule(infra)
	if err != nil {
		return nil, fmt.Errorf("init integration module: %w", err)
	}
	return []modules.Module{modules.NewClientModule(infra), integration}, nil
}
