package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tanpawarit/Breeze-CRM-Copilot/api"
	configx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/config"
)

// ServeCmd starts the HTTP server.
// Usage: copilot serve --addr :8000
type ServeCmd struct {
	Addr string `short:"a" long:"addr" description:"listen address, overrides HTTP_ADDR"`
}

func (s *ServeCmd) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCfg, err := configx.New[api.Config]("HTTP")
	if err != nil {
		return err
	}
	if s.Addr != "" {
		httpCfg.Addr = s.Addr
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []api.Option
	if a.QStash != nil {
		opts = append(opts, api.WithJobQueue(a.QStash))
	}
	srv, err := api.New(*httpCfg, a.Supervisor, opts...)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}
