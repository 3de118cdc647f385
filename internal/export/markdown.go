package export

import "strings"

// BuildMarkdown renders a meeting as a Markdown document. Regular sections
// get an H2 heading, special sections an H3. Attendance lines appear only
// for statuses that have anyone in them.
func BuildMarkdown(m MeetingData) string {
	lines := []string{"# Standup — " + m.Date, ""}

	if len(m.Present) > 0 || len(m.Remote) > 0 || len(m.Absent) > 0 {
		if len(m.Present) > 0 {
			lines = append(lines, "**Present:** "+strings.Join(m.Present, ", "))
		}
		if len(m.Remote) > 0 {
			lines = append(lines, "**Remote:** "+strings.Join(m.Remote, ", "))
		}
		if len(m.Absent) > 0 {
			lines = append(lines, "**Absent:** "+strings.Join(m.Absent, ", "))
		}
		lines = append(lines, "")
	}

	for _, sec := range m.Sections {
		prefix := "## "
		if sec.IsSpecial {
			prefix = "### "
		}
		lines = append(lines, prefix+sec.Name)
		if sec.Reporter != "" {
			lines = append(lines, "*Reporter: "+sec.Reporter+"*")
		}
		lines = append(lines, "")
		if sec.Content != "" {
			lines = append(lines, sec.Content)
		} else {
			lines = append(lines, "*No notes.*")
		}
		lines = append(lines, "")

		if len(sec.Todos) > 0 {
			lines = append(lines, "**Action Items:**")
			for _, t := range sec.Todos {
				check := " "
				if t.Done {
					check = "x"
				}
				extra := ""
				if t.Priority == "high" {
					extra += " [HIGH]"
				}
				if t.DueDate != "" {
					extra += " (due " + t.DueDate + ")"
				}
				lines = append(lines, "- ["+check+"] "+t.Text+extra)
			}
			lines = append(lines, "")
		}
	}

	return strings.Join(lines, "\n")
}

// Markdown renders a meeting as a downloadable Markdown file.
func Markdown(m MeetingData) *Result {
	return &Result{
		Data:     []byte(BuildMarkdown(m)),
		Filename: "standup-" + m.Date + ".md",
		MimeType: "text/markdown",
	}
}
