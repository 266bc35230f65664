package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/wolfeidau/pagepack/internal/assets"
	"github.com/wolfeidau/pagepack/internal/logger"
	"github.com/wolfeidau/pagepack/internal/report"
)

type BuildCmd struct {
	ProjectFlags `embed:""`

	Tree bool `help:"print the written files as a tree"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	defer setupTelemetry(ctx, globals, log)()

	s, mode, err := c.load()
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("mode", string(mode)).Str("dir", s.Dirname()).Msg("Starting build")

	p := assets.New(s, mode, assets.WithLogger(log))
	res, err := p.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if c.Tree && len(res.Files) > 0 {
		fmt.Fprint(os.Stdout, report.BuildTree(p.Config().Paths.Dirname, res.Files))
	}

	log.Info().
		Dur("duration", res.Duration).
		Int("files", len(res.Files)).
		Int("pages", len(res.Pages)).
		Int("warnings", res.Warnings).
		Msg("Done")

	return nil
}
