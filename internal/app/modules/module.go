// Package modules groups the portal's wiring into feature modules. Each
// module owns its use cases, hands them to the HTTP server and registers
// its River workers.
//
// Import Path: supportportal.io/portal/internal/app/modules
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"supportportal.io/portal/internal/api/handlers"
)

// Module is one feature's slice of the composition root.
type Module interface {
	Name() string

	// ContributeServerDeps fills the handler fields this module owns.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers adds the module's job workers. Called before the
	// River client is built.
	RegisterWorkers(*river.Workers)

	// Shutdown releases module resources once the job queue has stopped.
	Shutdown(context.Context) error
}
