package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const DefaultFile = "pagepack.yaml"

// Settings is the project level build configuration. Paths in Alias are
// relative to the directory holding the settings file.
type Settings struct {
	Alias            Alias               `yaml:"alias"`
	Dest             Dest                `yaml:"dest"`
	EntryDir         string              `yaml:"entryDir,omitempty"`
	ImageInlineLimit int64               `yaml:"imageInlineLimit"`
	Metafile         string              `yaml:"metafile,omitempty"`
	Concat           map[string][]string `yaml:"concat,omitempty"`
	DevServer        DevServer           `yaml:"devServer"`

	// dirname is where the settings were loaded from, not serialized.
	dirname string
}

type Alias struct {
	Root       string `yaml:"root"`
	SrcRoot    string `yaml:"srcRoot"`
	JSDest     string `yaml:"jsDest"`
	HTMLDest   string `yaml:"htmlDest"`
	CSSDest    string `yaml:"cssDest"`
	ImagesDest string `yaml:"imagesDest"`
}

type Dest struct {
	BasePath string `yaml:"basePath"`
}

// DevServer describes the local development server.
type DevServer struct {
	Port        int               `yaml:"port"`
	HomePage    string            `yaml:"homePage,omitempty"`
	Open        bool              `yaml:"open"`
	Proxy       map[string]string `yaml:"proxy,omitempty"`
	ProxyCache  bool              `yaml:"proxyCache"`
	CORSOrigins []string          `yaml:"corsOrigins,omitempty"`

	// ProxyCacheDir persists proxied responses on disk instead of in memory.
	ProxyCacheDir string `yaml:"proxyCacheDir,omitempty"`
}

// Default returns settings rooted at the current working directory.
func Default() Settings {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return defaultsAt(dir)
}

func defaultsAt(dir string) Settings {
	return Settings{
		Alias: Alias{
			Root:       "output",
			SrcRoot:    "src",
			JSDest:     "output",
			HTMLDest:   "output",
			CSSDest:    "output",
			ImagesDest: "output",
		},
		Dest:             Dest{BasePath: "/"},
		ImageInlineLimit: 100000,
		DevServer: DevServer{
			Port:        5000,
			Open:        true,
			CORSOrigins: []string{"*"},
		},
		dirname: dir,
	}
}

// Load reads settings from path on top of the defaults. A missing file is not
// an error, the defaults are returned rooted at the file's directory.
func Load(path string) (Settings, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to resolve settings path %s: %w", path, err)
	}

	s := defaultsAt(filepath.Dir(abs))

	b, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings %s: %w", abs, err)
	}

	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", abs, err)
	}

	return s, s.Validate()
}

// Dirname returns the project directory every alias is relative to.
func (s Settings) Dirname() string {
	return s.dirname
}

// WithDirname returns a copy of s rooted at dir.
func (s Settings) WithDirname(dir string) Settings {
	s.dirname = dir
	return s
}

// Validate checks the settings can be resolved into a safe output layout.
func (s Settings) Validate() error {
	if s.DevServer.Port < 0 || s.DevServer.Port > 65535 {
		return fmt.Errorf("%w: dev server port out of range: %d", ErrInvalidSettings, s.DevServer.Port)
	}
	if s.ImageInlineLimit < 0 {
		return fmt.Errorf("%w: imageInlineLimit must not be negative", ErrInvalidSettings)
	}

	p, err := s.Resolve()
	if err != nil {
		return err
	}

	for name, dest := range map[string]string{
		"root":       p.Root,
		"jsDest":     p.JSDest,
		"htmlDest":   p.HTMLDest,
		"cssDest":    p.CSSDest,
		"imagesDest": p.ImagesDest,
	} {
		if dest == p.Dirname || dest == p.SrcRoot || within(p.SrcRoot, dest) || within(dest, p.SrcRoot) {
			return fmt.Errorf("%w: alias %s (%s) must not be the project directory or overlap the source root", ErrInvalidSettings, name, dest)
		}
	}

	return nil
}

// HomePage returns the page opened once the dev server is listening.
func (s Settings) HomePage(p Paths) string {
	if s.DevServer.HomePage != "" {
		return s.DevServer.HomePage
	}
	host := "http://127.0.0.1:" + strconv.Itoa(s.DevServer.Port)
	base := s.Dest.BasePath
	if isURL(base) {
		// the dev server serves root at "/" when assets point at another host
		base = "/"
	}
	return host + PublicPath(base, p.Root, p.HTMLDest)
}
