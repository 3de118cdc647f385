package export

import (
	"bytes"
	"html/template"
	"strings"
)

var meetingTemplate = template.Must(template.New("meeting").Funcs(template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
}).Parse(meetingTemplateHTML))

// RenderMeetingHTML renders the printable HTML view of a meeting used by the
// PDF exporter. All field values pass through html/template escaping.
func RenderMeetingHTML(m MeetingData) (string, error) {
	var buf bytes.Buffer
	if err := meetingTemplate.Execute(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const meetingTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Standup {{.Date}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 1.5rem; }
    h3 { margin-top: 1.5rem; color: #555; }
    .attendance { color: #444; font-size: 0.9em; margin-bottom: 1.5rem; }
    .reporter { color: #666; font-style: italic; margin: 0; }
    .empty { color: #999; font-style: italic; }
    ul.todos { list-style: none; padding-left: 0; }
    ul.todos li { margin: 0.25rem 0; }
    .done { text-decoration: line-through; color: #888; }
    .high { color: #b00; font-weight: bold; }
    .due { color: #666; font-size: 0.9em; }
  </style>
</head>
<body>
  <h1>Standup {{.Date}}</h1>
  <div class="attendance">
    {{if .Present}}<div><strong>Present:</strong> {{join .Present}}</div>{{end}}
    {{if .Remote}}<div><strong>Remote:</strong> {{join .Remote}}</div>{{end}}
    {{if .Absent}}<div><strong>Absent:</strong> {{join .Absent}}</div>{{end}}
  </div>
  {{range .Sections}}
  {{if .IsSpecial}}<h3>{{.Name}}</h3>{{else}}<h2>{{.Name}}</h2>{{end}}
  {{if .Reporter}}<p class="reporter">Reporter: {{.Reporter}}</p>{{end}}
  {{if .Content}}<p>{{.Content}}</p>{{else}}<p class="empty">No notes.</p>{{end}}
  {{if .Todos}}
  <ul class="todos">
    {{range .Todos}}
    <li{{if .Done}} class="done"{{end}}>{{if .Done}}&#9745;{{else}}&#9744;{{end}} {{.Text}}{{if eq .Priority "high"}} <span class="high">[HIGH]</span>{{end}}{{if .DueDate}} <span class="due">(due {{.DueDate}})</span>{{end}}</li>
    {{end}}
  </ul>
  {{end}}
  {{end}}
</body>
</html>`
