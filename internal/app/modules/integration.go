package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"supportportal.io/portal/internal/api/handlers"
	"supportportal.io/portal/internal/integration/ofd"
	"supportportal.io/portal/internal/integration/ssh"
	"supportportal.io/portal/internal/jobs"
	"supportportal.io/portal/internal/usecase"
)

// IntegrationModule wires the external systems (OFD, SMTP, SSH) and the
// background jobs that use them.
type IntegrationModule struct {
	infra     *Infrastructure
	sshRunner *ssh.Runner
	fetcher   *ofd.Client
	exporter  *usecase.ExportClientsUseCase
}

// NewIntegrationModule creates the module. It fails when the configured
// known_hosts file cannot be loaded.
func NewIntegrationModule(infra *Infrastructure) (*IntegrationModule, error) {
	cfg := infra.Config
	runner, err := ssh.NewRunner(ssh.Options{
		DialTimeout:           cfg.SSH.DialTimeout,
		CommandTimeout:        cfg.SSH.CommandTimeout,
		KnownHostsFile:        cfg.SSH.KnownHostsFile,
		InsecureIgnoreHostKey: cfg.SSH.InsecureIgnoreHostKey,
	})
	if err != nil {
		return nil, fmt.Errorf("init ssh runner: %w", err)
	}
	return &IntegrationModule{
		infra:     infra,
		sshRunner: runner,
		fetcher:   ofd.NewClient(cfg.OFD.ScriptPath, cfg.OFD.Timeout),
		exporter:  usecase.NewExportClientsUseCase(infra.Queries),
	}, nil
}

func (m *IntegrationModule) Name() string { return "integration" }

func (m *IntegrationModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.SSH = m.sshRunner
}

// RegisterWorkers registers the OFD refresh, audit cleanup and mailed export workers.
func (m *IntegrationModule) RegisterWorkers(workers *river.Workers) {
	q := m.infra.Queries
	river.AddWorker(workers, jobs.NewOFDRefreshWorker(q, m.fetcher, m.infra.Box, m.infra.Pools.Integration))
	river.AddWorker(workers, jobs.NewAuditCleanupWorker(q, 0))
	river.AddWorker(workers, jobs.NewExportEmailWorker(m.exporter, q, m.infra.Box, m.infra.AuditLogger))
}

func (m *IntegrationModule) Shutdown(context.Context) error { return nil }
