package pages

import (
	"bytes"
	"html"
	"strings"
)

// inject adds style, preload and head snippet tags before </head> and script
// tags before </body>, in chunk order. Without those tags the markup is
// appended.
func inject(doc []byte, data Data, head []string) []byte {
	var headTags, bodyTags strings.Builder

	for _, href := range data.Styles {
		headTags.WriteString(`<link rel="stylesheet" href="` + html.EscapeString(href) + `">` + "\n")
	}
	for _, href := range data.Preloads {
		headTags.WriteString(`<link rel="modulepreload" href="` + html.EscapeString(href) + `">` + "\n")
	}
	for _, snippet := range head {
		headTags.WriteString(snippet + "\n")
	}
	for _, src := range data.Scripts {
		bodyTags.WriteString(`<script type="module" src="` + html.EscapeString(src) + `"></script>` + "\n")
	}

	doc = insertBefore(doc, headTags.String(), "</head>", "</body>")
	doc = insertBefore(doc, bodyTags.String(), "</body>")
	return doc
}

// insertBefore places markup before the last occurrence of the first tag
// found in doc.
func insertBefore(doc []byte, markup string, tags ...string) []byte {
	if markup == "" {
		return doc
	}

	lower := bytes.ToLower(doc)
	i := -1
	for _, tag := range tags {
		if i = bytes.LastIndex(lower, []byte(tag)); i >= 0 {
			break
		}
	}
	if i < 0 {
		return append(doc, markup...)
	}

	out := make([]byte, 0, len(doc)+len(markup))
	out = append(out, doc[:i]...)
	out = append(out, markup...)
	out = append(out, doc[i:]...)
	return out
}
