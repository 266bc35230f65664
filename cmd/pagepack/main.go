package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/pagepack/cmd/pagepack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build     commands.BuildCmd   `cmd:"" help:"Bundle scripts and generate pages"`
		Serve     commands.ServeCmd   `cmd:"" help:"Build, serve and rebuild on change"`
		Inspect   commands.InspectCmd `cmd:"" help:"Print the assembled build configuration"`
		Debug     bool                `help:"Enable debug mode." env:"PAGEPACK_DEBUG"`
		Telemetry bool                `help:"Export traces and metrics over OTLP." env:"PAGEPACK_TELEMETRY"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("pagepack"),
		kong.Description("Bundle entry scripts and generate HTML pages for them."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Telemetry: cli.Telemetry, Version: version})
	cmd.FatalIfErrorf(err)
}
