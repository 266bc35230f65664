package assets

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/pagepack/internal/settings"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// ChunkFiles are the URLs a page needs to load one chunk.
type ChunkFiles struct {
	Scripts  []string `yaml:"scripts"`
	Styles   []string `yaml:"styles"`
	Preloads []string `yaml:"preloads,omitempty"`
}

// Result describes a finished build.
type Result struct {
	ID       string
	Digest   string
	Mode     Mode
	Root     string
	Files    []string
	Pages    []string
	Warnings int
	Duration time.Duration
}

// Pipeline manages the asset build process and page generation
type Pipeline struct {
	settings settings.Settings
	mode     Mode
	head     []string
	logger   zerolog.Logger

	config   *Config
	metadata *BuildMetadata
	last     *Result
	mu       sync.RWMutex
}

type Option func(*Pipeline)

// WithLogger sets the logger used for build output.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithHeadSnippet adds raw markup injected into the head of every page.
func WithHeadSnippet(snippet string) Option {
	return func(p *Pipeline) {
		p.head = append(p.head, snippet)
	}
}

// New creates a new asset pipeline for the given settings and mode
func New(s settings.Settings, mode Mode, opts ...Option) *Pipeline {
	p := &Pipeline{
		settings: s,
		mode:     mode,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetSettings replaces the settings used by the next build.
func (p *Pipeline) SetSettings(s settings.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}

// Config returns the configuration of the last successful build.
func (p *Pipeline) Config() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// Last returns the most recent successful build result.
func (p *Pipeline) Last() *Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}
