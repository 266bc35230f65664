package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfeidau/pagepack/internal/devserver"
	"github.com/wolfeidau/pagepack/internal/logger"
)

type ServeCmd struct {
	ProjectFlags `embed:""`

	Host   string `help:"address to listen on" default:"127.0.0.1" env:"PAGEPACK_HOST"`
	Port   int    `help:"port to listen on, overrides devServer.port" env:"PAGEPACK_PORT"`
	NoOpen bool   `help:"do not open the home page in a browser" env:"PAGEPACK_NO_OPEN"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	defer setupTelemetry(ctx, globals, log)()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, mode, err := c.load()
	if err != nil {
		return err
	}
	if c.Port > 0 {
		s.DevServer.Port = c.Port
	}

	log.Info().Str("version", globals.Version).Str("mode", string(mode)).Str("dir", s.Dirname()).Msg("Starting dev server")

	srv, err := devserver.New(s, mode, devserver.Options{
		SettingsPath: c.Config,
		Host:         c.Host,
		Open:         s.DevServer.Open && !c.NoOpen,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
