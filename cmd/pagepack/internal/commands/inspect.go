package commands

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/pagepack/internal/assets"
)

type InspectCmd struct {
	ProjectFlags `embed:""`
}

func (c *InspectCmd) Run(_ context.Context, _ *Globals) error {
	s, mode, err := c.load()
	if err != nil {
		return err
	}

	cfg, err := assets.Assemble(s, mode)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
