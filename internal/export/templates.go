package export

import (
	"bytes"
	"html/template"

	"learningmap/api/internal/analytics"
	"learningmap/api/internal/hexmap"
)

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Map.Title}}</title>
<style>
  body { font-family: Georgia, serif; color: #1a1a1a; margin: 0; }
  h1 { font-size: 24pt; margin-bottom: 4pt; }
  h2 { font-size: 14pt; border-bottom: 1px solid #999; padding-bottom: 2pt; margin-top: 18pt; }
  .muted { color: #666; font-size: 10pt; }
  table { width: 100%; border-collapse: collapse; font-size: 9pt; margin-top: 8pt; }
  th, td { border: 1px solid #ccc; padding: 4pt 6pt; text-align: left; vertical-align: top; }
  th { background: #f0f0f0; }
  .summary span { display: inline-block; margin-right: 14pt; }
</style>
</head>
<body>
<h1>{{.Map.Title}}</h1>
{{if .Map.Meta.Description}}<p class="muted">{{.Map.Meta.Description}}</p>{{end}}
{{if .Map.TeacherEmail}}<p class="muted">Teacher: {{.Map.TeacherEmail}}</p>{{end}}

<h2>Coverage</h2>
<p class="summary">
  <span>Hexes: {{.Summary.TotalHexes}}</span>
  <span>Linked: {{.Summary.LinkedCount}}</span>
  <span>Unlinked: {{.Summary.UnlinkedCount}}</span>
  <span>Standards: {{len .Summary.Standards}}</span>
  <span>Untagged linked hexes: {{.Summary.Gaps.LinkNoSBAR}}</span>
</p>

{{if .Map.UbdData}}
<h2>Unit Plan</h2>
{{if .Map.UbdData.BigIdea}}<p><strong>Big idea:</strong> {{.Map.UbdData.BigIdea}}</p>{{end}}
{{range .Map.UbdData.EssentialQuestions}}<p><strong>Essential question:</strong> {{.}}</p>{{end}}
{{if .Map.UbdData.Stage3Plan}}<p><strong>Learning plan:</strong> {{.Map.UbdData.Stage3Plan}}</p>{{end}}
{{end}}

<h2>Activities</h2>
<table>
  <tr><th>Label</th><th>Type</th><th>Position</th><th>SBAR</th><th>Standards</th><th>Resource</th></tr>
  {{range .Map.Hexes}}
  <tr>
    <td>{{if .Label}}{{.Label}}{{else}}{{.ID}}{{end}}</td>
    <td>{{.Type}}</td>
    <td>{{.Row}},{{.Col}}</td>
    <td>{{range .Curriculum.SBARDomains}}{{.}} {{end}}</td>
    <td>{{range .Curriculum.Standards}}{{.}} {{end}}</td>
    <td>{{.LinkURL}}</td>
  </tr>
  {{end}}
</table>
</body>
</html>`))

type templateData struct {
	Map     hexmap.LearningMap
	Summary analytics.Summary
}

// RenderMapHTML renders the printable summary used by the PDF export.
func RenderMapHTML(m hexmap.LearningMap) (string, error) {
	m = hexmap.Normalize(m)
	var buf bytes.Buffer
	err := mapTemplate.Execute(&buf, templateData{Map: m, Summary: analytics.Compute(m)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
