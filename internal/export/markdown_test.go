package export

import (
	"strings"
	"testing"
)

func sampleMeeting() MeetingData {
	return MeetingData{
		Date:    "2026-03-01",
		Present: []string{"Priya N", "Sam K"},
		Remote:  []string{"Lena O"},
		Sections: []SectionData{
			{
				Name:     "Engineering",
				Reporter: "Priya N",
				Content:  "Shipped the billing fix.",
				Todos: []TodoData{
					{Text: "Backfill invoices", Done: false, Priority: "high", DueDate: "2026-03-05"},
					{Text: "Retire old cron", Done: true, Priority: "normal"},
				},
			},
			{
				Name:      "Shoutouts",
				IsSpecial: true,
			},
		},
	}
}

func TestBuildMarkdown(t *testing.T) {
	md := BuildMarkdown(sampleMeeting())

	want := strings.Join([]string{
		"# Standup — 2026-03-01",
		"",
		"**Present:** Priya N, Sam K",
		"**Remote:** Lena O",
		"",
		"## Engineering",
		"*Reporter: Priya N*",
		"",
		"Shipped the billing fix.",
		"",
		"**Action Items:**",
		"- [ ] Backfill invoices [HIGH] (due 2026-03-05)",
		"- [x] Retire old cron",
		"",
		"### Shoutouts",
		"",
		"*No notes.*",
		"",
	}, "\n")

	if md != want {
		t.Fatalf("markdown mismatch:\ngot:\n%s\nwant:\n%s", md, want)
	}
}

func TestBuildMarkdownSkipsEmptyAttendance(t *testing.T) {
	m := sampleMeeting()
	m.Present = nil
	m.Remote = nil
	md := BuildMarkdown(m)

	if strings.Contains(md, "**Present:**") || strings.Contains(md, "**Remote:**") {
		t.Fatal("empty attendance groups should be omitted")
	}
	if !strings.HasPrefix(md, "# Standup — 2026-03-01\n\n## Engineering") {
		t.Fatalf("header should go straight to sections when nobody is marked:\n%s", md)
	}
}

func TestMarkdownResult(t *testing.T) {
	res := Markdown(sampleMeeting())
	if res.Filename != "standup-2026-03-01.md" {
		t.Fatalf("filename = %q", res.Filename)
	}
	if res.MimeType != "text/markdown" {
		t.Fatalf("mime type = %q", res.MimeType)
	}
}

func TestRenderMeetingHTMLEscapes(t *testing.T) {
	m := sampleMeeting()
	m.Sections[0].Content = "<script>alert(1)</script>"
	html, err := RenderMeetingHTML(m)
	if err != nil {
		t.Fatalf("RenderMeetingHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatal("section content must be escaped")
	}
	if !strings.Contains(html, "Standup 2026-03-01") {
		t.Fatal("rendered page should carry the meeting date")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"standup-2026-03-01": "standup-2026-03-01",
		"weird / name?":      "weird--name",
		"":                   "standup",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
