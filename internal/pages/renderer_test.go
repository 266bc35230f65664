package pages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func testChunks() []Chunk {
	return []Chunk{
		{Name: "common", Scripts: []string{"/common.js"}, Styles: []string{"/common.css"}, Preloads: []string{"/async_component/chunk-A.js"}},
		{Name: "index", Scripts: []string{"/index.js"}, Styles: []string{"/index.css"}, Preloads: []string{"/async_component/chunk-A.js"}},
	}
}

func TestRender_htmlTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "index.html", `<!DOCTYPE html>
<html>
<head><title>{{ .Title }}</title></head>
<body><h1>{{ .Name }}</h1><img src="{{ asset "logo.png" }}"></body>
</html>`)

	r, err := NewRenderer(Options{PublicPath: "/app/", Mode: "development"})
	require.NoError(t, err)

	out, err := r.Render(Page{Key: filepath.Join(dir, "index"), Template: tmpl, Name: "index", Chunks: testChunks()})
	require.NoError(t, err)

	doc := string(out)
	require.Contains(t, doc, "<title>Index</title>")
	require.Contains(t, doc, "<h1>index</h1>")
	require.Contains(t, doc, `<img src="/app/logo.png">`)

	common := strings.Index(doc, `<script type="module" src="/common.js"></script>`)
	index := strings.Index(doc, `<script type="module" src="/index.js"></script>`)
	require.Positive(t, common)
	require.Greater(t, index, common, "chunk order must follow the declared order")
	require.Less(t, index, strings.Index(doc, "</body>"))

	commonCSS := strings.Index(doc, `<link rel="stylesheet" href="/common.css">`)
	indexCSS := strings.Index(doc, `<link rel="stylesheet" href="/index.css">`)
	require.Positive(t, commonCSS)
	require.Greater(t, indexCSS, commonCSS)
	require.Less(t, indexCSS, strings.Index(doc, "</head>"))

	require.Equal(t, 1, strings.Count(doc, "chunk-A.js"), "preloads are deduplicated")
}

func TestRender_headSnippetAndPartials(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "_partials/nav.html", `{{ define "nav" }}<nav>menu</nav>{{ end }}`)
	tmpl := writeTemplate(t, dir, "about.tmpl", `<html><head></head><body>{{ template "nav" . }}</body></html>`)

	r, err := NewRenderer(Options{
		PublicPath:  "/",
		Head:        []string{`<script src="/__pagepack/livereload.js"></script>`},
		PartialsDir: filepath.Join(dir, "_partials"),
	})
	require.NoError(t, err)

	out, err := r.Render(Page{Template: tmpl, Name: "about"})
	require.NoError(t, err)
	require.Contains(t, string(out), "<nav>menu</nav>")
	require.Contains(t, string(out), `<script src="/__pagepack/livereload.js"></script>`+"\n</head>")
}

func TestRender_pug(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "index.pug", `doctype html
html
  head
    title #{.Title}
  body
    h1= .Name
`)

	r, err := NewRenderer(Options{PublicPath: "/"})
	require.NoError(t, err)

	out, err := r.Render(Page{Key: filepath.Join(dir, "index"), Template: tmpl, Name: "index", Chunks: testChunks()})
	require.NoError(t, err)

	doc := string(out)
	require.Contains(t, doc, "<!DOCTYPE html>")
	require.Contains(t, doc, "<title>Index</title>")
	require.Contains(t, doc, "<h1>index</h1>")

	index := strings.Index(doc, `<script type="module" src="/index.js"></script>`)
	require.Positive(t, index)
	require.Less(t, index, strings.Index(doc, "</body>"))
	require.Less(t, strings.Index(doc, `<link rel="stylesheet" href="/index.css">`), strings.Index(doc, "</head>"))
}

func TestRender_pugUnknownFunction(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "broken.pug", "p= missing .Title\n")

	r, err := NewRenderer(Options{})
	require.NoError(t, err)

	_, err = r.Render(Page{Template: tmpl})
	require.Error(t, err)
}

func TestRender_markdown(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "getting-started.md", `---
title: Welcome
lang: de
---
# Hello

Some *text*.
`)

	r, err := NewRenderer(Options{PublicPath: "/"})
	require.NoError(t, err)

	out, err := r.Render(Page{Template: tmpl, Name: "getting-started", Chunks: testChunks()[1:]})
	require.NoError(t, err)

	doc := string(out)
	require.Contains(t, doc, `<html lang="de">`)
	require.Contains(t, doc, "<title>Welcome</title>")
	require.Contains(t, doc, `<h1 id="hello">Hello</h1>`)
	require.Contains(t, doc, "<em>text</em>")
	require.Contains(t, doc, `<script type="module" src="/index.js"></script>`)
}

func TestRender_markdownWithoutFrontMatter(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "release_notes.md", "plain body\n")

	r, err := NewRenderer(Options{})
	require.NoError(t, err)

	out, err := r.Render(Page{Template: tmpl})
	require.NoError(t, err)
	require.Contains(t, string(out), "<title>Release Notes</title>")
	require.Contains(t, string(out), "<p>plain body</p>")
}

func TestRender_templateError(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "broken.html", `{{ .Missing`)

	r, err := NewRenderer(Options{})
	require.NoError(t, err)

	_, err = r.Render(Page{Template: tmpl})
	require.Error(t, err)
}

func TestInject_withoutHeadOrBody(t *testing.T) {
	out := inject([]byte("<p>fragment</p>"), Data{Scripts: []string{"/a.js"}, Styles: []string{"/a.css"}}, nil)
	require.Equal(t, "<p>fragment</p>"+
		`<link rel="stylesheet" href="/a.css">`+"\n"+
		`<script type="module" src="/a.js"></script>`+"\n", string(out))
}

func TestTitleFromPath(t *testing.T) {
	require.Equal(t, "Getting Started", TitleFromPath("/src/entry/getting-started.md"))
	require.Equal(t, "Index", TitleFromPath("index.html"))
	require.Equal(t, "Release Notes", TitleFromPath("release_notes.tmpl"))
}
