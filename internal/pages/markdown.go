package pages

import (
	"bytes"
	"html/template"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const shell = `<!DOCTYPE html>
<html lang="{{ .Lang }}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ .Title }}</title>
</head>
<body>
{{ .Content }}
</body>
</html>
`

var (
	shellTemplate = template.Must(template.New("shell").Parse(shell))

	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
)

type frontMatter struct {
	Title string         `yaml:"title"`
	Lang  string         `yaml:"lang"`
	Extra map[string]any `yaml:",inline"`
}

func (r *Renderer) renderMarkdown(p Page, data Data) ([]byte, error) {
	src, err := readFile(p.Template)
	if err != nil {
		return nil, err
	}

	var fm frontMatter
	body, err := frontmatter.Parse(bytes.NewReader(src), &fm)
	if err != nil {
		// no usable front matter, treat the whole file as markdown
		body = src
		fm = frontMatter{}
	}

	var content bytes.Buffer
	if err := md.Convert(body, &content); err != nil {
		return nil, err
	}

	if fm.Title != "" {
		data.Title = fm.Title
	}
	if fm.Lang == "" {
		fm.Lang = "en"
	}
	for k, v := range fm.Extra {
		data.Params[k] = v
	}
	data.Content = template.HTML(content.String()) //nolint:gosec

	var out bytes.Buffer
	err = shellTemplate.Execute(&out, struct {
		Data
		Lang string
	}{Data: data, Lang: fm.Lang})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
