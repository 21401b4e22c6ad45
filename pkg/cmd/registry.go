package cmd

import (
	"log/slog"

	"github.com/bloomcare/careflow/pkg/handlers/createtask"
	"github.com/bloomcare/careflow/pkg/handlers/estimatelead"
	"github.com/bloomcare/careflow/pkg/handlers/schedulevisit"
	"github.com/bloomcare/careflow/pkg/handlers/sendmessage"
	"github.com/bloomcare/careflow/pkg/handlers/updaterecord"
	"github.com/bloomcare/careflow/pkg/protocol"
	"github.com/bloomcare/careflow/pkg/registry"
)

// NewRegistry builds a registry with the built-in handler factories bound
// to the given capability set.
func NewRegistry(logger *slog.Logger, caps protocol.Capabilities) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(sendmessage.NewFactory(caps.Messenger))
	reg.Register(createtask.NewFactory(caps.Tasks))
	reg.Register(updaterecord.NewFactory(caps.Records))
	reg.Register(estimatelead.NewFactory())
	reg.Register(schedulevisit.NewFactory(caps.Scheduler))

	return reg
}
