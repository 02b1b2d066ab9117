package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var contractTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/contract.html")
	if err != nil {
		// Fallback to built-in template if file not found
		contractTemplate = template.Must(template.New("contract").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	contractTemplate = template.Must(template.New("contract").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for contract template rendering
type TemplateData struct {
	Title      string
	Reference  string
	Employer   string
	Contractor string
	Status     string
	UpdatedAt  time.Time
	Sections   []TemplateSection
}

// TemplateSection is one section of conditions with its clauses in order.
type TemplateSection struct {
	Name    string
	Clauses []TemplateClause
}

// TemplateClause holds one rendered clause.
type TemplateClause struct {
	Number   string
	Heading  string
	Anchor   string
	BodyHTML template.HTML
}

// RenderContractHTML renders the contract template with provided data
func RenderContractHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := contractTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .clause { margin: 1rem 0; }
    .clause-number { font-weight: bold; }
    a.clause-ref { color: inherit; text-decoration: underline dotted; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Reference}} | {{.Employer}} / {{.Contractor}} | {{.UpdatedAt.Format "Jan 2, 2006"}}</div>
  {{range .Sections}}
  <h2>{{.Name}}</h2>
  {{range .Clauses}}
  <div class="clause"{{if .Anchor}} id="{{.Anchor}}"{{end}}>
    <p><span class="clause-number">{{.Number}}</span> {{.Heading}}</p>
    {{.BodyHTML}}
  </div>
  {{end}}
  {{end}}
</body>
</html>`
