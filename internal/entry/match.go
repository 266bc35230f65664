package entry

// Page is one generated page: its template and the chunks it loads, in order.
type Page struct {
	Key      string   `yaml:"key"`
	Template string   `yaml:"template"`
	Name     string   `yaml:"name"`
	Chunks   []string `yaml:"chunks"`
}

// Assignment is the outcome of matching entries against templates.
type Assignment struct {
	common  []string
	pages   []Page
	skipped []string
	byKey   map[string]string
}

// Match classifies every entry as a page chunk, when one of its sources
// without extension equals a template key, or a common chunk otherwise.
// Each template gets the common chunks in discovery order followed by its
// page chunk. Templates no entry matches produce no page.
func Match(entries Entries, templates Templates) Assignment {
	a := Assignment{byKey: make(map[string]string)}

	for _, ent := range entries.list {
		key, ok := matchingKey(ent, templates)
		if !ok {
			a.common = append(a.common, ent.Name)
			continue
		}
		// first match wins
		if _, taken := a.byKey[key]; !taken {
			a.byKey[key] = ent.Name
		}
	}

	for _, tmpl := range templates.list {
		name, ok := a.byKey[tmpl.Key]
		if !ok {
			a.skipped = append(a.skipped, tmpl.Key)
			continue
		}

		chunks := make([]string, 0, len(a.common)+1)
		chunks = append(chunks, a.common...)
		chunks = append(chunks, name)

		a.pages = append(a.pages, Page{
			Key:      tmpl.Key,
			Template: tmpl.Path,
			Name:     name,
			Chunks:   chunks,
		})
	}

	return a
}

func matchingKey(ent Entry, templates Templates) (string, bool) {
	for _, src := range ent.Sources {
		key := StripExt(src)
		if _, ok := templates.index[key]; ok {
			return key, true
		}
	}
	return "", false
}

// Pages returns the generated pages in template discovery order.
func (a Assignment) Pages() []Page {
	out := make([]Page, len(a.pages))
	for i, p := range a.pages {
		p.Chunks = append([]string(nil), p.Chunks...)
		out[i] = p
	}
	return out
}

// Common returns the chunks loaded by every page.
func (a Assignment) Common() []string {
	return append([]string(nil), a.common...)
}

// Skipped returns template keys that had no matching entry.
func (a Assignment) Skipped() []string {
	return append([]string(nil), a.skipped...)
}

// PageChunk returns the entry assigned to the template key.
func (a Assignment) PageChunk(key string) (string, bool) {
	name, ok := a.byKey[key]
	return name, ok
}

// ChunkIndex returns the position of chunk in the page's declared order, or
// -1. Tag emitters sort by it.
func (p Page) ChunkIndex(chunk string) int {
	for i, c := range p.Chunks {
		if c == chunk {
			return i
		}
	}
	return -1
}
