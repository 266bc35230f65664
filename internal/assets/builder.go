package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/pagepack/internal/pages"
	"github.com/wolfeidau/pagepack/internal/settings"
	"github.com/wolfeidau/pagepack/internal/telemetry"
)

var tracer = otel.Tracer("github.com/wolfeidau/pagepack/internal/assets")

// Build assembles the configuration, runs esbuild, writes the output and
// renders every matched page. An empty entry directory is not an error.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "assets.Build")
	defer span.End()

	m := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("mode", string(p.mode)))
	started := time.Now()

	m.BuildsTotal.Add(ctx, 1, attrs)

	res, err := p.build()
	m.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	if err != nil {
		m.BuildErrorsTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res.Duration = time.Since(started)
	m.PagesRenderedTotal.Add(ctx, int64(len(res.Pages)), attrs)
	span.SetAttributes(
		attribute.String("build.id", res.ID),
		attribute.Int("build.files", len(res.Files)),
		attribute.Int("build.pages", len(res.Pages)),
	)

	p.last = res
	return res, nil
}

func (p *Pipeline) build() (*Result, error) {
	cfg, err := Assemble(p.settings, p.mode)
	if err != nil {
		return nil, err
	}

	log := p.logger.With().Str("mode", string(cfg.Mode)).Logger()
	for _, key := range cfg.Skipped {
		log.Debug().Str("template", key).Msg("No entry matches template, skipping page")
	}

	res := &Result{ID: uuid.NewString(), Mode: cfg.Mode, Root: cfg.Paths.Root}
	w := newWriter()

	if len(cfg.Entries) == 0 {
		log.Info().Str("dir", cfg.Paths.EntryDir).Msg("No entry points found")
		if err := clean(cfg.Paths); err != nil {
			return nil, err
		}
		p.config, p.metadata = cfg, &BuildMetadata{Outputs: map[string]OutputInfo{}}
		res.Digest = w.digest()
		return res, nil
	}

	names := make([]string, len(cfg.Entries))
	for i, ent := range cfg.Entries {
		names[i] = ent.Name
	}
	log.Info().Strs("entrypoints", names).Msg("Building assets")

	result := api.Build(cfg.BuildOptions())

	res.Warnings = len(result.Warnings)
	for _, msg := range result.Warnings {
		logMessage(log.Warn(), "warning", msg).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			logMessage(log.Error(), "error", msg).Msg("Build error")
		}
		return nil, fmt.Errorf("%w: esbuild failed with %d errors: %s", ErrBuildFailed, len(result.Errors), result.Errors[0].Text)
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	if err := clean(cfg.Paths); err != nil {
		return nil, err
	}

	for _, file := range result.OutputFiles {
		target := cfg.locate(file.Path)
		contents := file.Contents
		if target != file.Path && strings.HasSuffix(target, ".map") {
			if contents, err = rebaseSourceMap(contents, filepath.Dir(file.Path), filepath.Dir(target)); err != nil {
				return nil, err
			}
		}
		if err := w.write(target, contents); err != nil {
			return nil, err
		}
		log.Debug().Str("file", target).Msg("Built file")
	}

	if err := p.renderPages(cfg, &metadata, w, res); err != nil {
		return nil, err
	}

	if err := runConcat(cfg, w, log); err != nil {
		return nil, err
	}

	if cfg.Metafile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Metafile), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(cfg.Metafile, []byte(result.Metafile), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write metafile: %w", err)
		}
	}

	res.Files = w.paths()
	res.Digest = w.digest()
	p.config, p.metadata = cfg, &metadata

	log.Info().
		Str("build", res.ID).
		Int("files", len(res.Files)).
		Int("pages", len(res.Pages)).
		Str("digest", res.Digest).
		Msg("Build complete")

	return res, nil
}

func (p *Pipeline) renderPages(cfg *Config, meta *BuildMetadata, w *writer, res *Result) error {
	renderer, err := pages.NewRenderer(pages.Options{
		PublicPath:  cfg.PublicPaths.Root,
		Mode:        string(cfg.Mode),
		Head:        p.head,
		PartialsDir: filepath.Join(cfg.Paths.EntryDir, "_partials"),
	})
	if err != nil {
		return err
	}

	for _, page := range cfg.Pages {
		pg := pages.Page{
			Key:      page.Key,
			Template: page.Template,
			Name:     page.Name,
			Output:   cfg.PageOutput(page.Key),
		}

		for _, chunk := range page.Chunks {
			files, err := chunkFiles(cfg, meta, chunk)
			if err != nil {
				return err
			}
			pg.Chunks = append(pg.Chunks, pages.Chunk{
				Name:     chunk,
				Scripts:  files.Scripts,
				Styles:   files.Styles,
				Preloads: files.Preloads,
			})
		}

		out, err := renderer.Render(pg)
		if err != nil {
			return fmt.Errorf("failed to render page %s: %w", page.Template, err)
		}
		if err := w.write(pg.Output, out); err != nil {
			return err
		}
		res.Pages = append(res.Pages, pg.Output)
	}

	return nil
}

// Chunks returns the URLs needed to load the named chunk, in load order.
func (p *Pipeline) Chunks(name string) (ChunkFiles, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil || p.config == nil {
		return ChunkFiles{}, ErrNotBuilt
	}

	return chunkFiles(p.config, p.metadata, name)
}

func chunkFiles(cfg *Config, meta *BuildMetadata, name string) (ChunkFiles, error) {
	key := cfg.outputKey(name)
	info, ok := meta.Outputs[key]
	if !ok {
		return ChunkFiles{}, fmt.Errorf("chunk %s not found in metadata", name)
	}

	files := ChunkFiles{
		Scripts: []string{cfg.urlForKey(key)},
	}
	if info.CSSBundle != "" {
		files.Styles = append(files.Styles, cfg.urlForKey(info.CSSBundle))
	}

	visited := map[string]bool{key: true}
	addDependencies(cfg, meta, info, &files.Preloads, visited)

	return files, nil
}

// addDependencies walks the static imports of output and appends every chunk
// it reaches, so the browser can fetch them in parallel with the entry.
func addDependencies(cfg *Config, meta *BuildMetadata, output OutputInfo, preloads *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || imp.Kind != "import-statement" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*preloads = append(*preloads, cfg.urlForKey(imp.Path))

		if chunkInfo, exists := meta.Outputs[imp.Path]; exists {
			addDependencies(cfg, meta, chunkInfo, preloads, visited)
		}
	}
}

// outputKey is the metafile key of the script emitted for an entry.
func (c *Config) outputKey(name string) string {
	out := filepath.Join(c.Paths.JSDest, name+".js")
	rel, err := filepath.Rel(c.Paths.Dirname, out)
	if err != nil {
		return filepath.ToSlash(out)
	}
	return filepath.ToSlash(rel)
}

func (c *Config) urlForKey(key string) string {
	abs := filepath.FromSlash(key)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.Paths.Dirname, abs)
	}
	return c.URL(c.locate(abs))
}

// locate returns where an esbuild output file is written. Style sheets move
// from jsDest to cssDest.
func (c *Config) locate(path string) string {
	if c.Paths.CSSDest == c.Paths.JSDest {
		return path
	}
	if !strings.HasSuffix(path, ".css") && !strings.HasSuffix(path, ".css.map") {
		return path
	}
	rel := relInside(c.Paths.JSDest, path)
	if rel == "" {
		return path
	}
	return filepath.Join(c.Paths.CSSDest, rel)
}

// URL returns the public URL of a written file.
func (c *Config) URL(path string) string {
	return settings.JoinURL(settings.PublicPath(c.BasePath, c.Paths.Root, filepath.Dir(path)), filepath.Base(path))
}

// rebaseSourceMap rewrites the relative sources of a source map that moved
// from one directory to another.
func rebaseSourceMap(contents []byte, from, to string) ([]byte, error) {
	var sm map[string]json.RawMessage
	if err := json.Unmarshal(contents, &sm); err != nil {
		return nil, fmt.Errorf("failed to parse source map: %w", err)
	}

	var sources []string
	if raw, ok := sm["sources"]; ok {
		if err := json.Unmarshal(raw, &sources); err != nil {
			return nil, fmt.Errorf("failed to parse source map sources: %w", err)
		}
	}

	for i, src := range sources {
		if src == "" || strings.Contains(src, ":") || strings.HasPrefix(src, "/") {
			continue
		}
		rel, err := filepath.Rel(to, filepath.Join(from, filepath.FromSlash(src)))
		if err != nil {
			continue
		}
		sources[i] = filepath.ToSlash(rel)
	}

	raw, err := json.Marshal(sources)
	if err != nil {
		return nil, err
	}
	sm["sources"] = raw

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sm); err != nil {
		return nil, fmt.Errorf("failed to encode source map: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// clean removes stale output from every output directory.
func clean(p settings.Paths) error {
	for _, dir := range p.Dests() {
		if dir == p.Dirname || dir == p.SrcRoot || dir == filepath.Dir(dir) {
			return fmt.Errorf("%w: %s", ErrUnsafeClean, dir)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// runConcat joins the configured source files into each concat target.
// Missing sources are skipped with a warning.
func runConcat(cfg *Config, w *writer, log zerolog.Logger) error {
	targets := make([]string, 0, len(cfg.Concat))
	for dest := range cfg.Concat {
		targets = append(targets, dest)
	}
	slices.Sort(targets)

	for _, dest := range targets {
		var buf []byte
		for _, src := range cfg.Concat[dest] {
			path := src
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.Paths.Dirname, path)
			}
			b, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				log.Warn().Str("source", src).Str("dest", dest).Msg("Concat source not found, skipping")
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read concat source %s: %w", src, err)
			}
			buf = append(buf, b...)
			if len(b) > 0 && b[len(b)-1] != '\n' {
				buf = append(buf, '\n')
			}
		}

		target := dest
		if !filepath.IsAbs(target) {
			target = filepath.Join(cfg.Paths.Dirname, target)
		}
		if err := w.write(target, buf); err != nil {
			return err
		}
		log.Debug().Str("dest", target).Int("sources", len(cfg.Concat[dest])).Msg("Concatenated files")
	}

	return nil
}

func logMessage(ev *zerolog.Event, key string, msg api.Message) *zerolog.Event {
	ev = ev.Str(key, msg.Text)
	if msg.Location != nil {
		ev = ev.Str("file", msg.Location.File).
			Int("line", msg.Location.Line).
			Int("column", msg.Location.Column)
	}
	return ev
}
