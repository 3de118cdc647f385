// Package export renders meetings as Markdown and PDF.
package export

import "errors"

// MeetingData is the denormalized snapshot of a meeting handed to the
// renderers. The app layer assembles it so this package stays free of
// storage concerns.
type MeetingData struct {
	Date     string
	Present  []string
	Remote   []string
	Absent   []string
	Sections []SectionData
}

// SectionData is one department block within a meeting.
type SectionData struct {
	Name      string
	Reporter  string
	Content   string
	IsSpecial bool
	Todos     []TodoData
}

// TodoData is one action item under a section.
type TodoData struct {
	Text     string
	Done     bool
	Priority string
	DueDate  string
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates the headless browser needed for PDF
// export is not installed.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
