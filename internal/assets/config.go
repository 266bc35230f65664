package assets

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/pagepack/internal/entry"
	"github.com/wolfeidau/pagepack/internal/settings"
)

type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// ModeFromEnv maps a NODE_ENV style value to a Mode. Anything other than
// "production" is development.
func ModeFromEnv(value string) Mode {
	if strings.EqualFold(strings.TrimSpace(value), string(Production)) {
		return Production
	}
	return Development
}

// PublicPaths are the URL prefixes of each output directory.
type PublicPaths struct {
	Root   string `yaml:"root"`
	JS     string `yaml:"js"`
	CSS    string `yaml:"css"`
	HTML   string `yaml:"html"`
	Images string `yaml:"images"`
}

// Config is the assembled build configuration: everything the bundler and the
// page renderer need for one build.
type Config struct {
	Mode             Mode                `yaml:"mode"`
	Paths            settings.Paths      `yaml:"paths"`
	BasePath         string              `yaml:"basePath"`
	PublicPaths      PublicPaths         `yaml:"publicPaths"`
	ImageInlineLimit int64               `yaml:"imageInlineLimit"`
	Entries          []entry.Entry       `yaml:"entries"`
	Templates        []entry.Template    `yaml:"templates"`
	Common           []string            `yaml:"common"`
	Pages            []entry.Page        `yaml:"pages"`
	Skipped          []string            `yaml:"skipped,omitempty"`
	Concat           map[string][]string `yaml:"concat,omitempty"`
	Metafile         string              `yaml:"metafile,omitempty"`

	entries entry.Entries
}

// Assemble resolves paths, discovers entries and templates and matches them.
func Assemble(s settings.Settings, mode Mode) (*Config, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	p, err := s.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	for _, dest := range []struct{ name, dir string }{
		{"jsDest", p.JSDest},
		{"cssDest", p.CSSDest},
		{"htmlDest", p.HTMLDest},
		{"imagesDest", p.ImagesDest},
	} {
		if relInside(p.Root, dest.dir) == "" {
			return nil, fmt.Errorf("%w: %s %s is not inside root %s", ErrOutsideRoot, dest.name, dest.dir, p.Root)
		}
	}

	entries, templates, err := entry.Discover(p.EntryDir)
	if err != nil {
		return nil, err
	}

	assignment := entry.Match(entries, templates)

	base := s.Dest.BasePath
	c := &Config{
		Mode:     mode,
		Paths:    p,
		BasePath: base,
		PublicPaths: PublicPaths{
			Root:   settings.PublicPath(base, p.Root, p.Root),
			JS:     settings.PublicPath(base, p.Root, p.JSDest),
			CSS:    settings.PublicPath(base, p.Root, p.CSSDest),
			HTML:   settings.PublicPath(base, p.Root, p.HTMLDest),
			Images: settings.PublicPath(base, p.Root, p.ImagesDest),
		},
		ImageInlineLimit: s.ImageInlineLimit,
		Entries:          entries.List(),
		Templates:        templates.List(),
		Common:           assignment.Common(),
		Pages:            assignment.Pages(),
		Skipped:          assignment.Skipped(),
		Concat:           s.Concat,
		entries:          entries,
	}

	if s.Metafile != "" {
		c.Metafile = s.Metafile
		if !filepath.IsAbs(c.Metafile) {
			c.Metafile = filepath.Join(p.Dirname, c.Metafile)
		}
	}

	return c, nil
}

// PageOutput returns where the page built from key is written.
func (c *Config) PageOutput(key string) string {
	rel, err := filepath.Rel(c.Paths.EntryDir, key)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(key)
	}
	return filepath.Join(c.Paths.HTMLDest, rel+".html")
}

// relInside returns dest relative to root, "." when equal and "" when dest is
// outside root.
func relInside(root, dest string) string {
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return rel
}
