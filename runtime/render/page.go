package render

import (
	"bytes"
	"html/template"

	"github.com/domini04/bluestar/runtime/types"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .Summary}}
<meta name="description" content="{{.Summary}}">
{{- end}}
</head>
<body>
<article>
<header>
<h1>{{.Title}}</h1>
<p class="byline">{{if .Author}}{{.Author}} · {{end}}{{.Date}}</p>
{{- if .Tags}}
<ul class="tags">{{range .Tags}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
{{- if .Summary}}
<p class="summary"><em>{{.Summary}}</em></p>
{{- end}}
</header>
{{.Body}}
</article>
</body>
</html>
`))

// Page renders doc as a standalone HTML file.
func Page(doc *types.Document) ([]byte, error) {
	body, err := HTML(doc.Body)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, struct {
		*types.Document
		Body template.HTML
	}{doc, template.HTML(body)}) //nolint:gosec // body is sanitized by bluemonday
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
