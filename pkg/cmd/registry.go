// Package cmd provides common initialization for the fluxion binaries.
package cmd

import (
	"log/slog"

	"github.com/fluxionhq/fluxion/pkg/credentials"
	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/nodes/aigenerate"
	"github.com/fluxionhq/fluxion/pkg/nodes/branch"
	"github.com/fluxionhq/fluxion/pkg/nodes/chatsend"
	"github.com/fluxionhq/fluxion/pkg/nodes/filenormalize"
	"github.com/fluxionhq/fluxion/pkg/nodes/httprequest"
	"github.com/fluxionhq/fluxion/pkg/nodes/jsonparse"
	"github.com/fluxionhq/fluxion/pkg/nodes/lognode"
	"github.com/fluxionhq/fluxion/pkg/nodes/scheduleconfig"
	"github.com/fluxionhq/fluxion/pkg/nodes/storageupload"
	"github.com/fluxionhq/fluxion/pkg/nodes/transform"
	"github.com/fluxionhq/fluxion/pkg/nodes/trigger"
)

// Collaborators holds the provider clients some node types depend on.
// A nil collaborator leaves its node type unregistered, so a deployment
// without, say, a chat integration simply rejects those nodes at
// config-validation time.
type Collaborators struct {
	Credentials *credentials.Resolver
	Sender      chatsend.Sender
	ModelClient aigenerate.ModelClient
	Uploader    storageupload.Uploader
}

func NewRegistry(logger *slog.Logger, collaborators Collaborators) *executor.Registry {
	registry := executor.NewRegistry(logger)

	registry.Register(trigger.NewManualFactory())
	registry.Register(trigger.NewWebhookFactory())
	registry.Register(trigger.NewScheduleFactory())
	registry.Register(trigger.NewPaymentFactory())

	registry.Register(branch.NewFactory())
	registry.Register(transform.NewFactory())
	registry.Register(jsonparse.NewFactory())
	registry.Register(filenormalize.NewFactory())
	registry.Register(scheduleconfig.NewFactory())
	registry.Register(lognode.NewFactory(logger))
	registry.Register(httprequest.NewFactory())

	if collaborators.Credentials != nil {
		if collaborators.Sender != nil {
			registry.Register(chatsend.NewFactory(collaborators.Credentials, collaborators.Sender))
		}

		if collaborators.ModelClient != nil {
			registry.Register(aigenerate.NewFactory(collaborators.Credentials, collaborators.ModelClient))
		}

		if collaborators.Uploader != nil {
			registry.Register(storageupload.NewFactory(collaborators.Credentials, collaborators.Uploader))
		}
	}

	return registry
}
