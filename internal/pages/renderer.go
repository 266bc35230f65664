// Package pages renders page templates and injects the tags that load each
// page's chunks.
package pages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/Joker/jade"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wolfeidau/pagepack/internal/settings"
)

// Chunk is one chunk a page loads, with the URLs of its files.
type Chunk struct {
	Name     string
	Scripts  []string
	Styles   []string
	Preloads []string
}

// Page is a page to render.
type Page struct {
	Key      string
	Template string
	Name     string
	Output   string
	Chunks   []Chunk
}

// Data is passed to page templates.
type Data struct {
	Title      string
	Name       string
	Mode       string
	PublicPath string
	Chunks     []Chunk
	Scripts    []string
	Styles     []string
	Preloads   []string
	Content    template.HTML
	Params     map[string]any
}

type Options struct {
	PublicPath  string
	Mode        string
	Head        []string
	PartialsDir string
	Funcs       template.FuncMap
}

type Renderer struct {
	opts Options
	base *template.Template
}

func NewRenderer(opts Options) (*Renderer, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
		"asset": func(name string) string {
			return settings.JoinURL(opts.PublicPath, name)
		},
	}
	maps.Copy(funcs, opts.Funcs)

	base := template.New("").Funcs(funcs)
	if opts.PartialsDir != "" {
		partials, err := filepath.Glob(filepath.Join(opts.PartialsDir, "*.html"))
		if err != nil {
			return nil, err
		}
		if len(partials) > 0 {
			if base, err = base.ParseFiles(partials...); err != nil {
				return nil, fmt.Errorf("failed to parse partials: %w", err)
			}
		}
	}

	return &Renderer{opts: opts, base: base}, nil
}

// Render executes the page template and injects the chunk tags.
func (r *Renderer) Render(p Page) ([]byte, error) {
	data := r.data(p)

	var (
		out []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(p.Template)) {
	case ".md":
		out, err = r.renderMarkdown(p, data)
	case ".pug":
		out, err = r.renderPug(p, data)
	default:
		out, err = r.renderTemplate(p, data)
	}
	if err != nil {
		return nil, err
	}

	return inject(out, data, r.opts.Head), nil
}

func (r *Renderer) data(p Page) Data {
	d := Data{
		Title:      TitleFromPath(p.Template),
		Name:       p.Name,
		Mode:       r.opts.Mode,
		PublicPath: r.opts.PublicPath,
		Chunks:     p.Chunks,
		Params:     map[string]any{},
	}

	seen := map[string]bool{}
	add := func(dst *[]string, urls []string) {
		for _, u := range urls {
			if seen[u] {
				continue
			}
			seen[u] = true
			*dst = append(*dst, u)
		}
	}
	for _, c := range p.Chunks {
		add(&d.Styles, c.Styles)
		add(&d.Scripts, c.Scripts)
	}
	for _, c := range p.Chunks {
		add(&d.Preloads, c.Preloads)
	}

	return d
}

func (r *Renderer) renderTemplate(p Page, data Data) ([]byte, error) {
	name := filepath.Base(p.Template)
	tmpl, err := r.base.Clone()
	if err != nil {
		return nil, err
	}
	if tmpl, err = tmpl.ParseFiles(p.Template); err != nil {
		return nil, err
	}
	return execute(tmpl, name, data)
}

// renderPug compiles a Pug template to html/template source and executes it
// with the same functions and partials as other templates.
func (r *Renderer) renderPug(p Page, data Data) ([]byte, error) {
	src, err := readFile(p.Template)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(p.Template)
	text, err := jade.Parse(p.Template, src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pug template %s: %w", p.Template, err)
	}

	tmpl, err := r.base.Clone()
	if err != nil {
		return nil, err
	}
	if _, err = tmpl.New(name).Parse(text); err != nil {
		return nil, err
	}
	return execute(tmpl, name, data)
}

func execute(tmpl *template.Template, name string, data Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TitleFromPath derives a page title from a file name: "getting-started.md"
// becomes "Getting Started".
func TitleFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.English).String(base)
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return b, nil
}
