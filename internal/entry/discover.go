// Package entry discovers entry scripts and page templates and decides which
// chunks each generated page references.
package entry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ScriptExtensions   = []string{".js", ".jsx", ".ts", ".tsx"}
	TemplateExtensions = []string{".html", ".tmpl", ".pug", ".md"}
)

// Entry is a named bundle root built from one or more source files.
type Entry struct {
	Name    string   `yaml:"name"`
	Sources []string `yaml:"sources"`
}

// Entries keeps entries in discovery order with unique names.
type Entries struct {
	list  []Entry
	index map[string]int
}

// Add appends source to the entry called name, creating it if needed.
func (e *Entries) Add(name, source string) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	if i, ok := e.index[name]; ok {
		e.list[i].Sources = append(e.list[i].Sources, source)
		return
	}
	e.index[name] = len(e.list)
	e.list = append(e.list, Entry{Name: name, Sources: []string{source}})
}

func (e Entries) Len() int { return len(e.list) }

// List returns the entries in discovery order.
func (e Entries) List() []Entry {
	out := make([]Entry, len(e.list))
	for i, ent := range e.list {
		out[i] = Entry{Name: ent.Name, Sources: append([]string(nil), ent.Sources...)}
	}
	return out
}

func (e Entries) Get(name string) (Entry, bool) {
	i, ok := e.index[name]
	if !ok {
		return Entry{}, false
	}
	return e.list[i], true
}

func (e Entries) Names() []string {
	names := make([]string, len(e.list))
	for i, ent := range e.list {
		names[i] = ent.Name
	}
	return names
}

// Template is a markup source for one generated page. Key is Path without
// its extension.
type Template struct {
	Key  string `yaml:"key"`
	Path string `yaml:"path"`
}

// Templates keeps templates in discovery order keyed by Key.
type Templates struct {
	list  []Template
	index map[string]int
}

// Add registers a template. A later template with the same key is ignored.
func (t *Templates) Add(path string) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	key := StripExt(path)
	if _, ok := t.index[key]; ok {
		return
	}
	t.index[key] = len(t.list)
	t.list = append(t.list, Template{Key: key, Path: path})
}

func (t Templates) Len() int { return len(t.list) }

func (t Templates) List() []Template {
	return append([]Template(nil), t.list...)
}

func (t Templates) Get(key string) (Template, bool) {
	i, ok := t.index[key]
	if !ok {
		return Template{}, false
	}
	return t.list[i], true
}

// Discover walks dir for entry scripts and templates. A missing dir yields
// empty results. Files starting with "_" or "." are skipped.
func Discover(dir string) (Entries, Templates, error) {
	var (
		entries   Entries
		templates Templates
	)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}

		name := d.Name()
		if path != dir && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case slices.Contains(ScriptExtensions, ext):
			entries.Add(strings.TrimSuffix(name, filepath.Ext(name)), path)
		case slices.Contains(TemplateExtensions, ext):
			templates.Add(path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Entries{}, Templates{}, fmt.Errorf("failed to scan entry directory %s: %w", dir, err)
	}

	return entries, templates, nil
}

// StripExt removes the final extension from path.
func StripExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
