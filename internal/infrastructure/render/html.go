package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/franchise/kpireport/internal/application/report"
)

// Ensure HTMLRenderer implements report.HTMLRenderer
var _ report.HTMLRenderer = (*HTMLRenderer)(nil)

// htmlPage is the view model handed to the page template
type htmlPage struct {
	Title       string
	RunID       string
	GeneratedAt string
	Summaries   []Table
	Stores      []htmlStore
}

type htmlStore struct {
	Name     string
	Sections []Table
}

// HTMLRenderer renders the report as a single printable HTML page.
// The template is parsed once; RenderHTML is safe for concurrent use.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer creates an HTMLRenderer
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		tmpl: template.Must(template.New("report").Funcs(htmlFuncs()).Parse(pageTemplate)),
	}
}

func htmlFuncs() template.FuncMap {
	return template.FuncMap{
		"formatCell": formatCell,
		"cellClass": func(c Cell) string {
			if c.Kind == KindText {
				return "text"
			}
			return "num"
		},
	}
}

// RenderHTML implements report.HTMLRenderer
func (r *HTMLRenderer) RenderHTML(doc *report.Document) (string, error) {
	if doc == nil || doc.Aggregation == nil {
		return "", errors.New("report document has no aggregation")
	}

	page := htmlPage{
		Title:       doc.Title,
		RunID:       doc.RunID,
		GeneratedAt: doc.GeneratedAt.Format("Jan 02, 2006 15:04 MST"),
	}
	for _, summary := range doc.Aggregation.Windows {
		page.Summaries = append(page.Summaries, summaryTable(doc, summary))
	}
	for _, store := range doc.Aggregation.Stores {
		page.Stores = append(page.Stores, htmlStore{Name: store, Sections: storeSections(doc, store)})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("failed to execute report template: %w", err)
	}
	return buf.String(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  @page { size: letter landscape; }
  body { font-family: "Helvetica Neue", Arial, sans-serif; font-size: 9pt; color: #222; }
  h1 { font-size: 16pt; margin: 0 0 4px; }
  h2 { font-size: 12pt; margin: 18px 0 6px; }
  h3 { font-size: 10pt; margin: 12px 0 4px; font-style: italic; color: #444; }
  .meta { color: #666; margin-bottom: 12px; }
  table { border-collapse: collapse; width: 100%; margin-bottom: 8px; }
  th { background: #F2F2F2; font-weight: bold; text-align: center; }
  th, td { border: 1px solid #000; padding: 3px 5px; }
  td.num { text-align: right; }
  .store { page-break-before: always; }
  .store table { width: auto; min-width: 40%; }
  .empty { color: #888; font-style: italic; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">Generated {{.GeneratedAt}}{{with .RunID}} · Run {{.}}{{end}}</div>
{{range .Summaries}}
<h2>{{.Title}}</h2>
{{template "table" .}}
{{end}}
{{range .Stores}}
<section class="store">
<h2>{{.Name}}</h2>
{{range .Sections}}
<h3>{{.Title}}</h3>
{{template "table" .}}
{{end}}
</section>
{{end}}
</body>
</html>
{{define "table"}}
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td class="{{cellClass .}}">{{formatCell .}}</td>{{end}}</tr>
{{else}}<tr><td class="empty" colspan="{{len .Headers}}">No data</td></tr>
{{end}}</tbody>
</table>
{{end}}`
