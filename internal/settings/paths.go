package settings

import (
	"path"
	"path/filepath"
	"strings"
)

// Paths holds the absolute directories derived from the aliases.
type Paths struct {
	Dirname    string `yaml:"dirname"`
	Root       string `yaml:"root"`
	SrcRoot    string `yaml:"srcRoot"`
	EntryDir   string `yaml:"entryDir"`
	JSDest     string `yaml:"jsDest"`
	HTMLDest   string `yaml:"htmlDest"`
	CSSDest    string `yaml:"cssDest"`
	ImagesDest string `yaml:"imagesDest"`
}

// Resolve turns every alias into an absolute path under the project directory.
func (s Settings) Resolve() (Paths, error) {
	dir := s.dirname
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Paths{}, err
	}

	abs := func(p string) string {
		if p == "" {
			return dir
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(dir, p)
	}

	p := Paths{
		Dirname:    dir,
		Root:       abs(s.Alias.Root),
		SrcRoot:    abs(s.Alias.SrcRoot),
		JSDest:     abs(s.Alias.JSDest),
		HTMLDest:   abs(s.Alias.HTMLDest),
		CSSDest:    abs(s.Alias.CSSDest),
		ImagesDest: abs(s.Alias.ImagesDest),
	}

	if s.EntryDir != "" {
		p.EntryDir = abs(s.EntryDir)
	} else {
		p.EntryDir = filepath.Join(p.SrcRoot, "entry")
	}

	return p, nil
}

// Aliases maps import prefixes to absolute directories so sources can import
// e.g. "srcRoot/components/button".
func (p Paths) Aliases() map[string]string {
	return map[string]string{
		"dirname":    p.Dirname,
		"root":       p.Root,
		"srcRoot":    p.SrcRoot,
		"jsDest":     p.JSDest,
		"htmlDest":   p.HTMLDest,
		"cssDest":    p.CSSDest,
		"imagesDest": p.ImagesDest,
	}
}

// Dests returns the distinct output directories, root first.
func (p Paths) Dests() []string {
	out := []string{p.Root}
	for _, d := range []string{p.JSDest, p.HTMLDest, p.CSSDest, p.ImagesDest} {
		if d == p.Root || within(p.Root, d) {
			continue
		}
		dup := false
		for _, o := range out {
			if o == d || within(o, d) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, d)
		}
	}
	return out
}

// PublicPath returns the URL prefix under which files written to dest are
// served: basePath joined with dest relative to root, always ending in "/".
func PublicPath(basePath, root, dest string) string {
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		rel = ""
	}
	return JoinURL(basePath, filepath.ToSlash(rel), "/")
}

// JoinURL joins URL path segments onto base, keeping any scheme or
// protocol-relative prefix of base intact. A trailing "/" in the last
// segment is preserved.
func JoinURL(base string, parts ...string) string {
	prefix := ""
	rest := base
	switch {
	case strings.Contains(base, "://"):
		i := strings.Index(base, "://") + 3
		j := strings.Index(base[i:], "/")
		if j < 0 {
			prefix, rest = base, "/"
		} else {
			prefix, rest = base[:i+j], base[i+j:]
		}
	case strings.HasPrefix(base, "//"):
		j := strings.Index(base[2:], "/")
		if j < 0 {
			prefix, rest = base, "/"
		} else {
			prefix, rest = base[:j+2], base[j+2:]
		}
	}

	segs := append([]string{"/", rest}, parts...)
	joined := path.Join(segs...)

	last := rest
	if len(parts) > 0 {
		last = parts[len(parts)-1]
	}
	if strings.HasSuffix(last, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}

	return prefix + joined
}

func isURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "//")
}

// within reports whether p is strictly inside dir.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
