package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/pagepack/internal/assets"
	"github.com/wolfeidau/pagepack/internal/settings"
	"github.com/wolfeidau/pagepack/internal/telemetry"
)

type Globals struct {
	Debug     bool
	Telemetry bool
	Version   string
}

// ProjectFlags select the settings file and build mode.
type ProjectFlags struct {
	Config string `help:"path to the settings file" default:"pagepack.yaml" type:"path" env:"PAGEPACK_CONFIG"`
	Mode   string `help:"build mode, production or development" default:"development" env:"NODE_ENV"`
}

func (f ProjectFlags) load() (settings.Settings, assets.Mode, error) {
	s, err := settings.Load(f.Config)
	if err != nil {
		return settings.Settings{}, "", err
	}
	return s, assets.ModeFromEnv(f.Mode), nil
}

// setupTelemetry starts the OTLP exporters when enabled and returns a func
// flushing them.
func setupTelemetry(ctx context.Context, globals *Globals, log zerolog.Logger) func() {
	if !globals.Telemetry {
		return func() {}
	}

	log.Info().Msg("Telemetry is enabled")
	shutdown, err := telemetry.Init(ctx, "pagepack", globals.Version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}
